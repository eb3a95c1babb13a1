package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/quicknet-il/support-bot-be/internal/core/analytics"
	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/core/escalation"
	"github.com/quicknet-il/support-bot-be/internal/core/guardrail"
	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/llm"
	"github.com/quicknet-il/support-bot-be/internal/core/reply"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) GenerateReply(ctx context.Context, systemPrompt string, history []llm.Turn) (string, error) {
	return p.reply, p.err
}

func (p *scriptedProvider) GetProviderName() string { return "scripted" }

type fixture struct {
	pipeline *Pipeline
	store    *repositories.MemoryStore
}

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Templates.Create(ctx, &models.Template{
		Key:       intent.IntentGreeting,
		ContentAr: "أهلاً وسهلاً! كيف أقدر أساعدك؟",
		ContentHe: "שלום! איך אפשר לעזור?",
		Active:    true,
	}))
	require.NoError(t, store.Templates.Create(ctx, &models.Template{
		Key:       intent.IntentHuman,
		ContentAr: "بالتأكيد، سأقوم بتحويلك لأحد موظفينا.",
		ContentHe: "בוודאי, אני מעביר אותך לנציג.",
		Active:    true,
	}))
	require.NoError(t, store.Policies.Create(ctx, &models.Policy{
		Type:     models.PolicyHumanRequest,
		Keywords: datatypes.NewJSONSlice([]string{"موظف", "נציג"}),
		Active:   true,
	}))
	require.NoError(t, store.Policies.Create(ctx, &models.Policy{
		Type:      models.PolicyPricingClaim,
		Keywords:  datatypes.NewJSONSlice([]string{"شيكل"}),
		ContentAr: "الأسعار النهائية تعتمد على العرض المتوفر.",
		Active:    true,
	}))

	var svc *llm.Service
	if provider != nil {
		svc = llm.NewServiceWithProvider(provider)
	}
	guard := guardrail.NewEngine(store.Policies)
	generator := reply.NewGenerator(store.Templates, svc, "كويك نت", time.Second)
	machine := escalation.NewMachine(store.Conversations, store.Handoffs, nil, 3)
	recorder := analytics.NewRecorder(store.Analytics)

	return &fixture{
		pipeline: NewPipeline(store.Conversations, guard, generator, machine, recorder),
		store:    store,
	}
}

func webchatTurn(visitorID, text string) *channel.InboundMessage {
	return &channel.InboundMessage{
		VisitorID:  visitorID,
		Channel:    models.ChannelWebchat,
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

func TestHandleInbound_GreetingTurn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "مرحبا"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "أهلاً وسهلاً! كيف أقدر أساعدك؟", out.Text)
	assert.False(t, out.Escalate)
	assert.Equal(t, "ar", out.Language)
	assert.NotEmpty(t, out.QuickReplies)

	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, conv.Status)
	assert.Equal(t, intent.IntentGreeting, conv.Intent)
	assert.Equal(t, "ar", conv.Language)
	assert.Equal(t, 2, conv.MessageCount) // user + bot

	msgs, err := f.store.Conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, intent.IntentGreeting, msgs[0].Intent)
	assert.Equal(t, models.RoleBot, msgs[1].Role)
}

func TestHandleInbound_HebrewLanguageSticks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "שלום"))
	require.NoError(t, err)
	assert.Equal(t, "he", out.Language)
	assert.Equal(t, "שלום! איך אפשר לעזור?", out.Text)

	// a later turn in another script keeps the conversation language
	out, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "ok מרחבא"))
	require.NoError(t, err)
	assert.Equal(t, "he", out.Language)
}

func TestHandleInbound_DuplicateDeliveryDropped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := &channel.InboundMessage{
		VisitorID:         "972500000001",
		Channel:           models.ChannelWhatsApp,
		Text:              "مرحبا",
		ProviderMessageID: "wamid.DUP",
		From:              "972500000001",
		ReceivedAt:        time.Now(),
	}

	first, err := f.pipeline.HandleInbound(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.pipeline.HandleInbound(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, second)

	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "972500000001", models.ChannelWhatsApp)
	require.NoError(t, err)
	msgs, err := f.store.Conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2) // one user turn, one bot turn, no duplicates
}

func TestHandleInbound_ExplicitHumanRequestEscalates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "بدي احكي مع موظف"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Escalate)
	assert.Equal(t, "بالتأكيد، سأقوم بتحويلك لأحد موظفينا.", out.Text)

	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, conv.Status)

	pending, err := f.store.Handoffs.PendingFor(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonExplicitRequest, pending.Reason)

	// transcript: user, system marker, bot ack
	msgs, err := f.store.Conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleSystem, msgs[1].Role)
}

func TestHandleInbound_AbusiveLanguageEscalatesAsGuardrail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.Policies.Create(ctx, &models.Policy{
		Type:      models.PolicyAbusiveLanguage,
		Keywords:  datatypes.NewJSONSlice([]string{"غبي"}),
		ContentAr: "نرجو الحفاظ على لغة محترمة. سيتم تحويلك لأحد موظفينا.",
		Active:    true,
	}))

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "انت غبي"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Escalate)
	assert.Equal(t, "نرجو الحفاظ على لغة محترمة. سيتم تحويلك لأحد موظفينا.", out.Text)

	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, conv.Status)

	// The block forces the human intent for the transcript, but the
	// handoff reason records the policy verdict.
	pending, err := f.store.Handoffs.PendingFor(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonGuardrail, pending.Reason)
}

func TestHandleInbound_UnknownStreakEscalatesOnThird(t *testing.T) {
	f := newFixture(t, nil) // no AI provider: unknowns fall back
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "الجهاز خربان"))
	require.NoError(t, err)
	assert.False(t, out.Escalate)
	assert.Equal(t, reply.StaticFallback("ar"), out.Text)

	out, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "ما زبط معي"))
	require.NoError(t, err)
	assert.False(t, out.Escalate)

	out, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "ولا اشي تغير"))
	require.NoError(t, err)
	assert.True(t, out.Escalate)
	assert.Equal(t, reply.EscalationNotice("ar"), out.Text)

	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, conv.Status)

	pending, err := f.store.Handoffs.PendingFor(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonUnknownStreak, pending.Reason)

	// a fourth turn lands in the human's lap, no second handoff
	out, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "؟؟"))
	require.NoError(t, err)
	assert.Nil(t, out)

	all, err := f.store.Handoffs.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHandleInbound_KnownIntentBreaksStreak(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "الجهاز خربان"))
	require.NoError(t, err)
	_, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "ما زبط معي"))
	require.NoError(t, err)

	// a recognized turn resets the counter
	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "مرحبا"))
	require.NoError(t, err)
	assert.False(t, out.Escalate)

	out, err = f.pipeline.HandleInbound(ctx, webchatTurn("v1", "خربان برضه"))
	require.NoError(t, err)
	assert.False(t, out.Escalate)
}

func TestHandleInbound_EscalatedConversationStaysSilent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "بدي موظف"))
	require.NoError(t, err)

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "في حدا هون؟"))
	require.NoError(t, err)
	assert.Nil(t, out)

	// the turn is still on the transcript for the agent
	conv, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	msgs, err := f.store.Conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "في حدا هون؟", msgs[len(msgs)-1].Content)
	assert.Equal(t, models.RoleUser, msgs[len(msgs)-1].Role)
}

func TestHandleInbound_ClosedConversationReopensFresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "مرحبا"))
	require.NoError(t, err)

	first, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	require.NoError(t, f.store.Conversations.Transition(ctx, first.ID, models.StatusClosed))

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "مرحبا"))
	require.NoError(t, err)
	require.NotNil(t, out)

	second, _, err := f.store.Conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, second.MessageCount)
}

func TestHandleInbound_PricingClaimRewritten(t *testing.T) {
	f := newFixture(t, &scriptedProvider{reply: "الراوتر بسعر 199 شيكل فقط"})
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "قديش حق الراوتر"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "الأسعار النهائية تعتمد على العرض المتوفر.", out.Text)
	assert.False(t, out.Escalate)
}

func TestHandleInbound_AIFailureFallsBack(t *testing.T) {
	f := newFixture(t, &scriptedProvider{err: errors.New("upstream down")})
	ctx := context.Background()

	out, err := f.pipeline.HandleInbound(ctx, webchatTurn("v1", "سؤال غريب"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, reply.StaticFallback("ar"), out.Text)
	assert.False(t, out.Escalate)
}
