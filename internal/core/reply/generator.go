package reply

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/llm"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// Source records which tier produced a reply.
type Source string

const (
	SourceTemplate Source = "template"
	SourceAI       Source = "ai"
	SourcePolicy   Source = "policy" // canned text a guardrail policy supplied
	SourceFallback Source = "fallback"
)

// Reply is the generated bot turn.
type Reply struct {
	Text         string
	Source       Source
	QuickReplies []string
}

// Static last-resort replies per language.
const (
	fallbackAr = "عذراً، لم أفهم طلبك تماماً. هل يمكنك إعادة صياغته بكلمات أخرى؟"
	fallbackHe = "מצטערים, לא הבנתי את הבקשה. אפשר לנסח אותה מחדש?"

	escalationNoticeAr = "سأقوم بتحويلك لأحد موظفينا وسيتواصل معك في أقرب وقت."
	escalationNoticeHe = "אני מעביר אותך לנציג שירות שיחזור אליך בהקדם."
)

// Generator resolves a reply: template by intent+language first, then the
// AI capability under a hard timeout, then the static fallback. The caller
// always gets some reply within budget; no tier failure surfaces an error.
type Generator struct {
	templates    repositories.TemplateRepo
	llm          *llm.Service
	businessName string
	aiTimeout    time.Duration
}

func NewGenerator(templates repositories.TemplateRepo, llmService *llm.Service, businessName string, aiTimeout time.Duration) *Generator {
	if aiTimeout <= 0 {
		aiTimeout = 5 * time.Second
	}
	return &Generator{
		templates:    templates,
		llm:          llmService,
		businessName: businessName,
		aiTimeout:    aiTimeout,
	}
}

// Generate runs the three-tier resolution for one turn.
func (g *Generator) Generate(ctx context.Context, intentName string, conv *models.Conversation, history []models.Message) *Reply {
	if intentName != intent.IntentUnknown {
		if r := g.fromTemplate(ctx, intentName, conv); r != nil {
			return r
		}
	}

	if r := g.fromAI(ctx, conv, history); r != nil {
		return r
	}

	return &Reply{
		Text:   StaticFallback(conv.Language),
		Source: SourceFallback,
	}
}

func (g *Generator) fromTemplate(ctx context.Context, intentName string, conv *models.Conversation) *Reply {
	tpl, err := g.templates.GetActiveByKey(ctx, intentName)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			utils.LogWarn("template lookup failed", map[string]interface{}{
				"intent": intentName, "error": err.Error(),
			})
		}
		return nil
	}

	content := tpl.Content(conv.Language)
	if content == "" {
		return nil
	}

	text, ok := Substitute(content, tpl.Variables, templateVars(conv))
	if !ok {
		// Missing variable fails closed to the next tier rather than
		// sending a broken string.
		return nil
	}

	return &Reply{
		Text:         text,
		Source:       SourceTemplate,
		QuickReplies: QuickReplies(intentName, conv.Language),
	}
}

func (g *Generator) fromAI(ctx context.Context, conv *models.Conversation, history []models.Message) *Reply {
	if g.llm == nil {
		return nil
	}

	aiCtx, cancel := context.WithTimeout(ctx, g.aiTimeout)
	defer cancel()

	turns := make([]llm.Turn, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			turns = append(turns, llm.Turn{Role: "user", Content: msg.Content})
		case models.RoleBot:
			turns = append(turns, llm.Turn{Role: "assistant", Content: msg.Content})
		}
	}

	prompt := llm.BuildSystemPrompt(g.businessName, conv.Language)
	text, err := g.llm.GenerateReply(aiCtx, prompt, turns)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			utils.LogWarn("AI generation failed", map[string]interface{}{
				"conversation_id": conv.ID.String(), "error": err.Error(),
			})
		}
		return nil
	}

	return &Reply{Text: strings.TrimSpace(text), Source: SourceAI}
}

// StaticFallback returns the configured last-resort reply for a language.
func StaticFallback(language string) string {
	if language == "he" {
		return fallbackHe
	}
	return fallbackAr
}

// EscalationNotice is the acknowledgement sent when a turn ends in a
// handoff and no policy or template supplied its own wording.
func EscalationNotice(language string) string {
	if language == "he" {
		return escalationNoticeHe
	}
	return escalationNoticeAr
}

var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

// Substitute fills {name}-style placeholders from values. It reports false
// when a declared variable has no value or an unresolved token remains.
func Substitute(content string, variables []string, values map[string]string) (string, bool) {
	out := content
	for _, v := range variables {
		val, ok := values[v]
		if !ok || val == "" {
			return "", false
		}
		out = strings.ReplaceAll(out, "{"+v+"}", val)
	}
	if placeholderPattern.MatchString(out) {
		return "", false
	}
	return out, true
}

func templateVars(conv *models.Conversation) map[string]string {
	return map[string]string{
		"phone":   conv.CustomerPhone,
		"channel": string(conv.Channel),
	}
}

// quick reply suggestions shown by the webchat widget after a template hit.
var quickReplySets = map[string]map[string][]string{
	intent.IntentGreeting: {
		"ar": {"ساعات الدوام", "الموقع", "حالة الطلب"},
		"he": {"שעות פתיחה", "מיקום", "סטטוס הזמנה"},
	},
	intent.IntentHours: {
		"ar": {"الموقع", "أريد موظف"},
		"he": {"מיקום", "נציג שירות"},
	},
	intent.IntentLocation: {
		"ar": {"ساعات الدوام", "أريد موظف"},
		"he": {"שעות פתיחה", "נציג שירות"},
	},
}

// QuickReplies returns the suggestion chips for an intent, if any.
func QuickReplies(intentName, language string) []string {
	set, ok := quickReplySets[intentName]
	if !ok {
		return nil
	}
	if language == "" {
		language = "ar"
	}
	return set[language]
}
