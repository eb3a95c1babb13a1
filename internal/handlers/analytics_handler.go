package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/quicknet-il/support-bot-be/internal/core/analytics"
	"github.com/quicknet-il/support-bot-be/internal/models"
)

type AnalyticsHandler struct {
	recorder *analytics.Recorder
}

func NewAnalyticsHandler(recorder *analytics.Recorder) *AnalyticsHandler {
	return &AnalyticsHandler{recorder: recorder}
}

// GET /admin/analytics/daily?days=7
func (h *AnalyticsHandler) Daily(c *fiber.Ctx) error {
	days := queryDays(c)
	rows, err := h.recorder.LastNDays(c.Context(), days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch analytics",
		})
	}
	return c.JSON(rows)
}

// GET /admin/analytics/summary?days=7
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	days := queryDays(c)
	totals, err := h.recorder.Summary(c.Context(), days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch analytics",
		})
	}
	return c.JSON(totals)
}

type CsatRequest struct {
	Channel models.Channel `json:"channel"`
	Score   int            `json:"score"`
}

// POST /events/csat
// Post-conversation satisfaction survey, 1 to 5.
func (h *AnalyticsHandler) RecordCsat(c *fiber.Ctx) error {
	var req CsatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if !validChannel(req.Channel) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown channel",
		})
	}
	if req.Score < 1 || req.Score > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "score must be between 1 and 5",
		})
	}

	h.recorder.RecordCsat(req.Channel, req.Score)
	return c.JSON(fiber.Map{"status": "recorded"})
}

type StoreClickRequest struct {
	Channel models.Channel `json:"channel"`
}

// POST /events/store-click
// The widget reports when a visitor follows the online-store link.
func (h *AnalyticsHandler) RecordStoreClick(c *fiber.Ctx) error {
	var req StoreClickRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if !validChannel(req.Channel) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown channel",
		})
	}

	h.recorder.RecordStoreClick(req.Channel)
	return c.JSON(fiber.Map{"status": "recorded"})
}

func validChannel(ch models.Channel) bool {
	switch ch {
	case models.ChannelWebchat, models.ChannelWhatsApp, models.ChannelSMS:
		return true
	}
	return false
}

func queryDays(c *fiber.Ctx) int {
	days, _ := strconv.Atoi(c.Query("days", "7"))
	if days <= 0 || days > 90 {
		days = 7
	}
	return days
}
