package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicknet-il/support-bot-be/internal/core/notification"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

type ContactHandler struct {
	notifier notification.Sender
}

func NewContactHandler(notifier notification.Sender) *ContactHandler {
	return &ContactHandler{notifier: notifier}
}

type ContactRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// POST /contact
// Callback-request form on the website; forwards straight to the admin.
func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var req ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if req.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone is required",
		})
	}

	text := fmt.Sprintf("📞 طلب تواصل جديد\nالاسم: %s\nالهاتف: %s", req.Name, req.Phone)
	if req.Message != "" {
		text += "\nالرسالة: " + req.Message
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.notifier.Send(ctx, text); err != nil {
			utils.LogWarn("contact notification failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "received"})
}
