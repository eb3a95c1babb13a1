package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/notification"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

const (
	// DefaultUnknownStreak is how many consecutive unknown classifications
	// trigger a handoff when not configured otherwise.
	DefaultUnknownStreak = 3

	summaryTurns    = 3
	summaryMaxRunes = 240
)

// Machine drives conversation status transitions and handoff creation.
// Transitions are one-way; the escalated status is the authoritative
// signal, the admin notification is only best-effort decoration.
type Machine struct {
	conversations repositories.ConversationRepo
	handoffs      repositories.HandoffRepo
	notifier      notification.Sender
	unknownStreak int
}

func NewMachine(
	conversations repositories.ConversationRepo,
	handoffs repositories.HandoffRepo,
	notifier notification.Sender,
	unknownStreak int,
) *Machine {
	if unknownStreak <= 0 {
		unknownStreak = DefaultUnknownStreak
	}
	if notifier == nil {
		notifier = notification.NoopSender{}
	}
	return &Machine{
		conversations: conversations,
		handoffs:      handoffs,
		notifier:      notifier,
		unknownStreak: unknownStreak,
	}
}

// ShouldEscalate decides whether the just-classified turn tips the
// conversation over. Reasons are checked in priority order: explicit human
// request, guardrail verdict, unknown streak. A blocked inbound message is
// a guardrail outcome even though the block also forces the human intent
// for the transcript; explicit_request is reserved for turns where the
// user actually asked for a person.
func (m *Machine) ShouldEscalate(intentName string, blocked, mustEscalate bool, history []models.Message) (models.HandoffReason, bool) {
	if blocked {
		return models.ReasonGuardrail, true
	}
	if intentName == intent.IntentHuman {
		return models.ReasonExplicitRequest, true
	}
	if mustEscalate {
		return models.ReasonGuardrail, true
	}
	if m.UnknownStreak(history) >= m.unknownStreak {
		return models.ReasonUnknownStreak, true
	}
	return "", false
}

// UnknownStreak counts the trailing run of user messages classified unknown.
func (m *Machine) UnknownStreak(history []models.Message) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != models.RoleUser {
			continue
		}
		if msg.Intent != intent.IntentUnknown {
			break
		}
		streak++
	}
	return streak
}

// Escalate transitions the conversation, creates the pending handoff, marks
// the transcript, and fires the admin notification. It is idempotent: a
// conversation that is already escalated with a pending handoff is left
// untouched and no second handoff is created.
func (m *Machine) Escalate(ctx context.Context, conv *models.Conversation, reason models.HandoffReason, history []models.Message) (*models.Handoff, error) {
	if err := m.conversations.Transition(ctx, conv.ID, models.StatusEscalated); err != nil {
		if !errors.Is(err, repositories.ErrConflict) {
			return nil, err
		}
		// Already escalated; reuse the pending handoff if one exists.
		if pending, perr := m.handoffs.PendingFor(ctx, conv.ID); perr == nil {
			return pending, nil
		}
	}
	conv.Status = models.StatusEscalated

	handoff := &models.Handoff{
		ConversationID: conv.ID,
		Reason:         reason,
		Summary:        Summarize(history),
		CustomerPhone:  conv.CustomerPhone,
	}
	if err := m.handoffs.Create(ctx, handoff); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			pending, perr := m.handoffs.PendingFor(ctx, conv.ID)
			if perr == nil {
				return pending, nil
			}
		}
		return nil, err
	}

	m.markTranscript(ctx, conv)
	m.notifyAdmin(ctx, conv, handoff)

	return handoff, nil
}

// markTranscript appends the system message recording the lifecycle event.
func (m *Machine) markTranscript(ctx context.Context, conv *models.Conversation) {
	text := "تم تحويل المحادثة إلى موظف خدمة العملاء"
	if conv.Language == "he" {
		text = "השיחה הועברה לנציג שירות"
	}
	err := m.conversations.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleSystem,
		Content:        text,
	})
	if err != nil {
		utils.LogWarn("failed to append escalation marker", map[string]interface{}{
			"conversation_id": conv.ID.String(), "error": err.Error(),
		})
	}
}

// notifyAdmin is best-effort: failure is logged and never reverses the
// transition, because the escalated status is the source of truth.
func (m *Machine) notifyAdmin(ctx context.Context, conv *models.Conversation, handoff *models.Handoff) {
	text := fmt.Sprintf(
		"🔔 New handoff (%s)\nChannel: %s\nVisitor: %s\nReason: %s\n\n%s",
		handoff.ID.String()[:8], conv.Channel, conv.VisitorID, handoff.Reason, handoff.Summary,
	)
	if err := m.notifier.Send(ctx, text); err != nil {
		utils.LogWarn("admin notification failed", map[string]interface{}{
			"handoff_id": handoff.ID.String(), "error": err.Error(),
		})
	}
}

// Summarize builds the short extractive synopsis of the last user turns.
func Summarize(history []models.Message) string {
	var turns []string
	for i := len(history) - 1; i >= 0 && len(turns) < summaryTurns; i-- {
		if history[i].Role != models.RoleUser {
			continue
		}
		turns = append(turns, strings.TrimSpace(history[i].Content))
	}
	// restore chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	summary := strings.Join(turns, " | ")
	runes := []rune(summary)
	if len(runes) > summaryMaxRunes {
		summary = string(runes[:summaryMaxRunes]) + "…"
	}
	return summary
}
