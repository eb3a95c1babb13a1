package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quicknet-il/support-bot-be/internal/core/escalation"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

const transcriptLimit = 200

// AdminHandler is the back-office surface: template and policy
// management, the handoff queue, and conversation oversight.
type AdminHandler struct {
	templates     repositories.TemplateRepo
	policies      repositories.PolicyRepo
	handoffs      repositories.HandoffRepo
	conversations repositories.ConversationRepo
	escalation    *escalation.Machine
}

func NewAdminHandler(
	templates repositories.TemplateRepo,
	policies repositories.PolicyRepo,
	handoffs repositories.HandoffRepo,
	conversations repositories.ConversationRepo,
	escalationMachine *escalation.Machine,
) *AdminHandler {
	return &AdminHandler{
		templates:     templates,
		policies:      policies,
		handoffs:      handoffs,
		conversations: conversations,
		escalation:    escalationMachine,
	}
}

// ---- templates ----

type TemplateRequest struct {
	Key       string   `json:"key"`
	ContentAr string   `json:"content_ar"`
	ContentHe string   `json:"content_he"`
	Variables []string `json:"variables"`
	Active    *bool    `json:"active"`
}

// GET /admin/templates
func (h *AdminHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.templates.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch templates",
		})
	}
	return c.JSON(templates)
}

// POST /admin/templates
func (h *AdminHandler) CreateTemplate(c *fiber.Ctx) error {
	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}
	if req.ContentAr == "" && req.ContentHe == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required in at least one language",
		})
	}

	tpl := &models.Template{
		Key:       req.Key,
		ContentAr: req.ContentAr,
		ContentHe: req.ContentHe,
		Variables: datatypes.NewJSONSlice(req.Variables),
		Active:    true,
	}
	if req.Active != nil {
		tpl.Active = *req.Active
	}

	if err := h.templates.Create(c.Context(), tpl); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "an active template with this key already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(tpl)
}

// PUT /admin/templates/:id
func (h *AdminHandler) UpdateTemplate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid template id",
		})
	}

	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}

	tpl := &models.Template{
		ID:        id,
		Key:       req.Key,
		ContentAr: req.ContentAr,
		ContentHe: req.ContentHe,
		Variables: datatypes.NewJSONSlice(req.Variables),
		Active:    req.Active == nil || *req.Active,
	}

	if err := h.templates.Update(c.Context(), tpl); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "template not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update template",
		})
	}

	return c.JSON(tpl)
}

// ---- policies ----

type PolicyRequest struct {
	Type      models.PolicyType `json:"type"`
	TitleAr   string            `json:"title_ar"`
	TitleHe   string            `json:"title_he"`
	ContentAr string            `json:"content_ar"`
	ContentHe string            `json:"content_he"`
	Keywords  []string          `json:"keywords"`
	Active    *bool             `json:"active"`
}

func validPolicyType(t models.PolicyType) bool {
	switch t {
	case models.PolicyHumanRequest, models.PolicyAbusiveLanguage,
		models.PolicyPricingClaim, models.PolicyLegalDisclaimer:
		return true
	}
	return false
}

// GET /admin/policies
func (h *AdminHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.policies.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch policies",
		})
	}
	return c.JSON(policies)
}

// POST /admin/policies
func (h *AdminHandler) CreatePolicy(c *fiber.Ctx) error {
	var req PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if !validPolicyType(req.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown policy type",
		})
	}

	policy := &models.Policy{
		Type:      req.Type,
		TitleAr:   req.TitleAr,
		TitleHe:   req.TitleHe,
		ContentAr: req.ContentAr,
		ContentHe: req.ContentHe,
		Keywords:  datatypes.NewJSONSlice(req.Keywords),
		Active:    true,
	}
	if req.Active != nil {
		policy.Active = *req.Active
	}

	if err := h.policies.Create(c.Context(), policy); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create policy",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(policy)
}

// PUT /admin/policies/:id
func (h *AdminHandler) UpdatePolicy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid policy id",
		})
	}

	var req PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if !validPolicyType(req.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown policy type",
		})
	}

	policy := &models.Policy{
		ID:        id,
		Type:      req.Type,
		TitleAr:   req.TitleAr,
		TitleHe:   req.TitleHe,
		ContentAr: req.ContentAr,
		ContentHe: req.ContentHe,
		Keywords:  datatypes.NewJSONSlice(req.Keywords),
		Active:    req.Active == nil || *req.Active,
	}

	if err := h.policies.Update(c.Context(), policy); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "policy not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update policy",
		})
	}

	return c.JSON(policy)
}

// ---- handoffs ----

// GET /admin/handoffs?status=pending&limit=50&offset=0
func (h *AdminHandler) ListHandoffs(c *fiber.Ctx) error {
	status := models.HandoffStatus(c.Query("status"))
	limit, offset := pagination(c)

	handoffs, err := h.handoffs.List(c.Context(), status, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch handoffs",
		})
	}
	return c.JSON(handoffs)
}

type ResolveRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// POST /admin/handoffs/:id/resolve
func (h *AdminHandler) ResolveHandoff(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid handoff id",
		})
	}

	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}

	var assignedTo *uuid.UUID
	if req.AssignedTo != "" {
		agentID, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid assigned_to",
			})
		}
		assignedTo = &agentID
	}

	if err := h.handoffs.Resolve(c.Context(), id, assignedTo); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no pending handoff with this id",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve handoff",
		})
	}

	return c.JSON(fiber.Map{"status": "resolved"})
}

// ---- conversations ----

// GET /admin/conversations?status=active&limit=50&offset=0
func (h *AdminHandler) ListConversations(c *fiber.Ctx) error {
	status := models.ConversationStatus(c.Query("status"))
	limit, offset := pagination(c)

	convs, err := h.conversations.List(c.Context(), status, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch conversations",
		})
	}
	return c.JSON(convs)
}

// GET /admin/conversations/:id/messages
func (h *AdminHandler) GetTranscript(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid conversation id",
		})
	}

	conv, err := h.conversations.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "conversation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch conversation",
		})
	}

	messages, err := h.conversations.RecentMessages(c.Context(), id, transcriptLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch transcript",
		})
	}

	return c.JSON(fiber.Map{
		"conversation": conv,
		"messages":     messages,
	})
}

// POST /admin/conversations/:id/close
func (h *AdminHandler) CloseConversation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid conversation id",
		})
	}

	if err := h.conversations.Transition(c.Context(), id, models.StatusClosed); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "conversation not found",
			})
		case errors.Is(err, repositories.ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "conversation is already closed",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to close conversation",
		})
	}

	return c.JSON(fiber.Map{"status": "closed"})
}

// POST /admin/conversations/:id/escalate
func (h *AdminHandler) EscalateConversation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid conversation id",
		})
	}

	conv, err := h.conversations.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "conversation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch conversation",
		})
	}
	if conv.Status == models.StatusClosed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "conversation is closed",
		})
	}

	history, err := h.conversations.RecentMessages(c.Context(), id, transcriptLimit)
	if err != nil {
		history = nil
	}

	handoff, err := h.escalation.Escalate(c.Context(), conv, models.ReasonAdminAction, history)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to escalate conversation",
		})
	}

	return c.JSON(handoff)
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
