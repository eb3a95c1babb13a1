package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/llm"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

// fakeProvider scripts the AI tier for tests.
type fakeProvider struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeProvider) GenerateReply(ctx context.Context, systemPrompt string, history []llm.Turn) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeProvider) GetProviderName() string { return "fake" }

func newGenerator(t *testing.T, provider llm.Provider) (*Generator, *repositories.MemoryTemplateRepo) {
	t.Helper()
	templates := repositories.NewMemoryTemplateRepo()
	var svc *llm.Service
	if provider != nil {
		svc = llm.NewServiceWithProvider(provider)
	}
	return NewGenerator(templates, svc, "كويك نت", time.Second), templates
}

func TestGenerate_TemplateTier(t *testing.T) {
	gen, templates := newGenerator(t, &fakeProvider{reply: "ai reply"})
	require.NoError(t, templates.Create(context.Background(), &models.Template{
		Key:       intent.IntentHours,
		ContentAr: "ساعات الدوام من 9 حتى 7.",
		Active:    true,
	}))
	conv := &models.Conversation{Language: "ar"}

	rep := gen.Generate(context.Background(), intent.IntentHours, conv, nil)
	assert.Equal(t, SourceTemplate, rep.Source)
	assert.Equal(t, "ساعات الدوام من 9 حتى 7.", rep.Text)
	assert.Equal(t, []string{"الموقع", "أريد موظف"}, rep.QuickReplies)
}

func TestGenerate_TemplateLanguageSelection(t *testing.T) {
	gen, templates := newGenerator(t, nil)
	require.NoError(t, templates.Create(context.Background(), &models.Template{
		Key:       intent.IntentGreeting,
		ContentAr: "أهلاً وسهلاً!",
		ContentHe: "שלום וברוכים הבאים!",
		Active:    true,
	}))

	rep := gen.Generate(context.Background(), intent.IntentGreeting, &models.Conversation{Language: "he"}, nil)
	assert.Equal(t, "שלום וברוכים הבאים!", rep.Text)

	rep = gen.Generate(context.Background(), intent.IntentGreeting, &models.Conversation{Language: "ar"}, nil)
	assert.Equal(t, "أهلاً وسهلاً!", rep.Text)
}

func TestGenerate_AITierWhenNoTemplate(t *testing.T) {
	gen, _ := newGenerator(t, &fakeProvider{reply: "بتقدر تتواصل معنا على الرقم الرئيسي."})
	conv := &models.Conversation{Language: "ar"}

	rep := gen.Generate(context.Background(), intent.IntentUnknown, conv, []models.Message{
		{Role: models.RoleUser, Content: "سؤال حر"},
	})
	assert.Equal(t, SourceAI, rep.Source)
	assert.Equal(t, "بتقدر تتواصل معنا على الرقم الرئيسي.", rep.Text)
}

func TestGenerate_FallbackWhenAIFails(t *testing.T) {
	gen, _ := newGenerator(t, &fakeProvider{err: errors.New("upstream 500")})
	conv := &models.Conversation{Language: "ar"}

	rep := gen.Generate(context.Background(), intent.IntentUnknown, conv, nil)
	assert.Equal(t, SourceFallback, rep.Source)
	assert.Equal(t, StaticFallback("ar"), rep.Text)
}

func TestGenerate_FallbackWhenAITimesOut(t *testing.T) {
	templates := repositories.NewMemoryTemplateRepo()
	svc := llm.NewServiceWithProvider(&fakeProvider{reply: "late", delay: 200 * time.Millisecond})
	gen := NewGenerator(templates, svc, "كويك نت", 20*time.Millisecond)
	conv := &models.Conversation{Language: "he"}

	rep := gen.Generate(context.Background(), intent.IntentUnknown, conv, nil)
	assert.Equal(t, SourceFallback, rep.Source)
	assert.Equal(t, StaticFallback("he"), rep.Text)
}

func TestGenerate_FallbackWhenNoProviderConfigured(t *testing.T) {
	gen, _ := newGenerator(t, nil)
	conv := &models.Conversation{Language: "ar"}

	rep := gen.Generate(context.Background(), intent.IntentUnknown, conv, nil)
	assert.Equal(t, SourceFallback, rep.Source)
}

func TestGenerate_BrokenTemplateFallsToNextTier(t *testing.T) {
	gen, templates := newGenerator(t, &fakeProvider{reply: "ai instead"})
	// declares a variable the conversation cannot supply
	require.NoError(t, templates.Create(context.Background(), &models.Template{
		Key:       intent.IntentOrderStatus,
		ContentAr: "طلبك رقم {order_number} قيد التجهيز",
		Variables: datatypes.NewJSONSlice([]string{"order_number"}),
		Active:    true,
	}))
	conv := &models.Conversation{Language: "ar"}

	rep := gen.Generate(context.Background(), intent.IntentOrderStatus, conv, nil)
	assert.Equal(t, SourceAI, rep.Source)
}

func TestSubstitute(t *testing.T) {
	out, ok := Substitute("مرحبا {name}", []string{"name"}, map[string]string{"name": "Sam"})
	assert.True(t, ok)
	assert.Equal(t, "مرحبا Sam", out)
}

func TestSubstitute_MissingValue(t *testing.T) {
	_, ok := Substitute("مرحبا {name}", []string{"name"}, map[string]string{})
	assert.False(t, ok)
}

func TestSubstitute_UndeclaredTokenLeftOver(t *testing.T) {
	_, ok := Substitute("مرحبا {name} في {city}", []string{"name"}, map[string]string{"name": "Sam"})
	assert.False(t, ok)
}

func TestQuickReplies(t *testing.T) {
	assert.Equal(t, []string{"ساعات الدوام", "الموقع", "حالة الطلب"}, QuickReplies(intent.IntentGreeting, "ar"))
	assert.Equal(t, []string{"שעות פתיחה", "מיקום", "סטטוס הזמנה"}, QuickReplies(intent.IntentGreeting, "he"))
	assert.Nil(t, QuickReplies(intent.IntentUnknown, "ar"))
}
