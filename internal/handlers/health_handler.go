package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quicknet-il/support-bot-be/internal/core/llm"
)

type HealthHandler struct {
	llmService *llm.Service
}

func NewHealthHandler(llmService *llm.Service) *HealthHandler {
	return &HealthHandler{llmService: llmService}
}

// GET /health
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	provider := "none"
	if h.llmService != nil {
		provider = h.llmService.GetProviderName()
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "support-bot-api",
		"provider": provider,
	})
}
