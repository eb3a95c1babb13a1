package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/engine"
	"github.com/quicknet-il/support-bot-be/internal/models"
)

type ChatHandler struct {
	pipeline *engine.Pipeline
}

func NewChatHandler(pipeline *engine.Pipeline) *ChatHandler {
	return &ChatHandler{pipeline: pipeline}
}

// ChatRequest is the webchat widget's message envelope.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse carries the bot turn back to the widget.
type ChatResponse struct {
	Text         string   `json:"text"`
	QuickReplies []string `json:"quickReplies,omitempty"`
	Escalate     bool     `json:"escalate"`
	Language     string   `json:"language"`
	SessionID    string   `json:"sessionId"`
}

// POST /chat
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	// First message of a session may arrive without an ID; mint one so
	// the widget can keep the conversation going.
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	in := &channel.InboundMessage{
		VisitorID:  req.SessionID,
		Channel:    models.ChannelWebchat,
		Text:       req.Message,
		ReceivedAt: time.Now(),
	}

	reply, err := h.pipeline.HandleInbound(c.Context(), in)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process message",
		})
	}
	if reply == nil {
		// Conversation is with a human agent; the widget shows a waiting state.
		return c.JSON(ChatResponse{Escalate: true, SessionID: req.SessionID})
	}

	return c.JSON(ChatResponse{
		Text:         reply.Text,
		QuickReplies: reply.QuickReplies,
		Escalate:     reply.Escalate,
		Language:     reply.Language,
		SessionID:    req.SessionID,
	})
}
