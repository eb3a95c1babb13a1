package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/engine"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

const webhookProcessTimeout = 30 * time.Second

type WhatsAppHandler struct {
	pipeline *engine.Pipeline
	adapter  *channel.WhatsAppAdapter
}

func NewWhatsAppHandler(pipeline *engine.Pipeline, adapter *channel.WhatsAppAdapter) *WhatsAppHandler {
	return &WhatsAppHandler{pipeline: pipeline, adapter: adapter}
}

// GET /webhooks/whatsapp
// Meta's subscription handshake: echo the challenge when the verify
// token matches.
func (h *WhatsAppHandler) Verify(c *fiber.Ctx) error {
	challenge, ok := h.adapter.VerifyWebhook(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if !ok {
		return c.SendStatus(fiber.StatusForbidden)
	}
	return c.SendString(challenge)
}

// POST /webhooks/whatsapp
// Answers fast; Meta flags subscriptions with slow replies. Deliveries
// that parse get a 200 immediately and the turn runs in the background,
// with the reply going out through the Cloud API. Only payloads we
// cannot parse at all get a 400.
func (h *WhatsAppHandler) Receive(c *fiber.Ctx) error {
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	in, err := h.adapter.ParseInbound(body)
	if errors.Is(err, channel.ErrNotAMessage) {
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if err != nil {
		utils.LogWarn("unparseable whatsapp webhook", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}

	go h.process(in)

	return c.JSON(fiber.Map{"status": "received"})
}

func (h *WhatsAppHandler) process(in *channel.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	reply, err := h.pipeline.HandleInbound(ctx, in)
	if err != nil {
		utils.LogError("whatsapp turn failed", err, map[string]interface{}{"from": in.From})
		return
	}
	if reply == nil {
		return
	}

	if _, err := h.adapter.SendOutbound(ctx, in.From, reply); err != nil {
		utils.LogError("whatsapp send failed", err, map[string]interface{}{"to": in.From})
	}
}
