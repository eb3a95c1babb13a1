package escalation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

// captureSender records admin notifications.
type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureSender) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func newMachine(t *testing.T) (*Machine, *repositories.MemoryConversationRepo, *repositories.MemoryHandoffRepo, *captureSender) {
	t.Helper()
	conversations := repositories.NewMemoryConversationRepo()
	handoffs := repositories.NewMemoryHandoffRepo()
	sender := &captureSender{}
	return NewMachine(conversations, handoffs, sender, 3), conversations, handoffs, sender
}

func userTurn(content, intentName string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content, Intent: intentName}
}

func TestShouldEscalate_ExplicitRequestWins(t *testing.T) {
	m, _, _, _ := newMachine(t)

	history := []models.Message{
		userTurn("???", intent.IntentUnknown),
		userTurn("???", intent.IntentUnknown),
		userTurn("بدي موظف", intent.IntentHuman),
	}
	reason, ok := m.ShouldEscalate(intent.IntentHuman, false, true, history)
	assert.True(t, ok)
	assert.Equal(t, models.ReasonExplicitRequest, reason)
}

func TestShouldEscalate_GuardrailVerdict(t *testing.T) {
	m, _, _, _ := newMachine(t)

	reason, ok := m.ShouldEscalate(intent.IntentHours, false, true, nil)
	assert.True(t, ok)
	assert.Equal(t, models.ReasonGuardrail, reason)
}

func TestShouldEscalate_BlockedTurnIsGuardrailEvenWithForcedIntent(t *testing.T) {
	m, _, _, _ := newMachine(t)

	// An abusive-language block forces the human intent for the
	// transcript, but the handoff reason stays guardrail.
	reason, ok := m.ShouldEscalate(intent.IntentHuman, true, true, nil)
	assert.True(t, ok)
	assert.Equal(t, models.ReasonGuardrail, reason)
}

func TestShouldEscalate_UnknownStreak(t *testing.T) {
	m, _, _, _ := newMachine(t)

	history := []models.Message{
		userTurn("a", intent.IntentUnknown),
		{Role: models.RoleBot, Content: "عذراً"},
		userTurn("b", intent.IntentUnknown),
		{Role: models.RoleBot, Content: "عذراً"},
		userTurn("c", intent.IntentUnknown),
	}
	reason, ok := m.ShouldEscalate(intent.IntentUnknown, false, false, history)
	assert.True(t, ok)
	assert.Equal(t, models.ReasonUnknownStreak, reason)
}

func TestShouldEscalate_StreakBrokenByKnownIntent(t *testing.T) {
	m, _, _, _ := newMachine(t)

	history := []models.Message{
		userTurn("a", intent.IntentUnknown),
		userTurn("متى تفتحون", intent.IntentHours),
		userTurn("b", intent.IntentUnknown),
		userTurn("c", intent.IntentUnknown),
	}
	_, ok := m.ShouldEscalate(intent.IntentUnknown, false, false, history)
	assert.False(t, ok)
}

func TestUnknownStreak_IgnoresBotTurns(t *testing.T) {
	m, _, _, _ := newMachine(t)

	history := []models.Message{
		userTurn("a", intent.IntentUnknown),
		{Role: models.RoleBot, Content: "..."},
		userTurn("b", intent.IntentUnknown),
		{Role: models.RoleSystem, Content: "..."},
	}
	assert.Equal(t, 2, m.UnknownStreak(history))
}

func TestEscalate_CreatesHandoffAndMarksTranscript(t *testing.T) {
	m, conversations, handoffs, sender := newMachine(t)
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate(ctx, "v1", models.ChannelWhatsApp)
	require.NoError(t, err)
	conv.CustomerPhone = "+972500000001"

	history := []models.Message{
		userTurn("الراوتر بطل يشتغل", intent.IntentUnknown),
		userTurn("جربت كل شي", intent.IntentUnknown),
	}
	handoff, err := m.Escalate(ctx, conv, models.ReasonUnknownStreak, history)
	require.NoError(t, err)

	assert.Equal(t, models.ReasonUnknownStreak, handoff.Reason)
	assert.Equal(t, models.HandoffPending, handoff.Status)
	assert.Equal(t, "+972500000001", handoff.CustomerPhone)
	assert.Contains(t, handoff.Summary, "الراوتر بطل يشتغل")

	got, err := conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, got.Status)

	// system marker appended
	msgs, err := conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)

	// one pending handoff, one notification
	pending, err := handoffs.PendingFor(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, handoff.ID, pending.ID)
	assert.Len(t, sender.sent, 1)
}

func TestEscalate_Idempotent(t *testing.T) {
	m, conversations, handoffs, sender := newMachine(t)
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)

	first, err := m.Escalate(ctx, conv, models.ReasonExplicitRequest, nil)
	require.NoError(t, err)

	second, err := m.Escalate(ctx, conv, models.ReasonUnknownStreak, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.ReasonExplicitRequest, second.Reason)

	all, err := handoffs.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, sender.sent, 1)
}

func TestEscalate_HebrewTranscriptMarker(t *testing.T) {
	m, conversations, _, _ := newMachine(t)
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	conv.Language = "he"

	_, err = m.Escalate(ctx, conv, models.ReasonExplicitRequest, nil)
	require.NoError(t, err)

	msgs, err := conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "השיחה הועברה לנציג שירות", msgs[0].Content)
}

func TestSummarize(t *testing.T) {
	history := []models.Message{
		userTurn("first", ""),
		{Role: models.RoleBot, Content: "bot"},
		userTurn("second", ""),
		userTurn("third", ""),
		userTurn("fourth", ""),
	}
	// last three user turns, chronological
	assert.Equal(t, "second | third | fourth", Summarize(history))
}

func TestSummarize_Truncates(t *testing.T) {
	long := strings.Repeat("مشكلة ", 100)
	summary := Summarize([]models.Message{userTurn(long, "")})
	assert.LessOrEqual(t, len([]rune(summary)), 241)
	assert.True(t, strings.HasSuffix(summary, "…"))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, "", Summarize(nil))
}
