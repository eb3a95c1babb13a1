package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/engine"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// emptyTwiml tells Twilio not to send its own reply; ours goes out
// through the REST API instead.
const emptyTwiml = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type SMSHandler struct {
	pipeline *engine.Pipeline
	adapter  *channel.SMSAdapter
}

func NewSMSHandler(pipeline *engine.Pipeline, adapter *channel.SMSAdapter) *SMSHandler {
	return &SMSHandler{pipeline: pipeline, adapter: adapter}
}

// POST /webhooks/sms
func (h *SMSHandler) Receive(c *fiber.Ctx) error {
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	in, err := h.adapter.ParseInbound(body)
	if errors.Is(err, channel.ErrNotAMessage) {
		c.Set(fiber.HeaderContentType, "text/xml")
		return c.SendString(emptyTwiml)
	}
	if err != nil {
		utils.LogWarn("unparseable sms webhook", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}

	go h.process(in)

	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString(emptyTwiml)
}

func (h *SMSHandler) process(in *channel.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	reply, err := h.pipeline.HandleInbound(ctx, in)
	if err != nil {
		utils.LogError("sms turn failed", err, map[string]interface{}{"from": in.From})
		return
	}
	if reply == nil {
		return
	}

	if _, err := h.adapter.SendOutbound(ctx, in.From, reply); err != nil {
		utils.LogError("sms send failed", err, map[string]interface{}{"to": in.From})
	}
}
