package guardrail

import (
	"context"
	"regexp"
	"strings"

	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// InboundDecision is the outcome of checking a user message. A policy match
// is a normal decision, never an error. ForcedIntent overrides whatever the
// classifier says.
type InboundDecision struct {
	Matched      bool
	Blocked      bool // skip generation entirely, reply with Reply
	ForcedIntent string
	Reply        string // canned response for blocked messages
	PolicyType   models.PolicyType
}

// OutboundDecision is the outcome of validating a draft reply before send.
type OutboundDecision struct {
	Allowed      bool
	Text         string // the (possibly rewritten or amended) reply text
	MustEscalate bool
	PolicyType   models.PolicyType
}

// Engine evaluates messages and draft replies against the active policy
// set. Policies are fetched per call so an admin edit takes effect on the
// next turn without a restart.
type Engine struct {
	policies repositories.PolicyRepo
}

func NewEngine(policies repositories.PolicyRepo) *Engine {
	return &Engine{policies: policies}
}

// CheckInbound flags user content matching safety-relevant policies.
// An explicit human request forces the intent to human regardless of the
// classifier; abusive language additionally blocks generation and answers
// with the policy's own text.
func (e *Engine) CheckInbound(ctx context.Context, text, language string) InboundDecision {
	norm := intent.Normalize(text)

	for _, p := range e.activePolicies(ctx) {
		if !matchKeywords(norm, p.Keywords) {
			continue
		}
		switch p.Type {
		case models.PolicyHumanRequest:
			return InboundDecision{
				Matched:      true,
				ForcedIntent: intent.IntentHuman,
				PolicyType:   p.Type,
			}
		case models.PolicyAbusiveLanguage:
			return InboundDecision{
				Matched:      true,
				Blocked:      true,
				ForcedIntent: intent.IntentHuman,
				Reply:        p.Content(language),
				PolicyType:   p.Type,
			}
		}
	}
	return InboundDecision{}
}

// priceClaimPattern catches a number glued to a currency marker, the shape
// of an unverified price commitment.
var priceClaimPattern = regexp.MustCompile(`[0-9][0-9.,]*\s*(₪|\$|شيكل|شواقل|دينار|שקל|ש"ח|ils|nis)`)

// CheckOutbound validates a generated draft. A pricing-claim violation is
// rewritten to the policy's safe text when one is configured, otherwise it
// forces escalation. A legal-disclaimer match appends the disclosure.
func (e *Engine) CheckOutbound(ctx context.Context, draft string, conv *models.Conversation) OutboundDecision {
	norm := intent.Normalize(draft)
	lower := strings.ToLower(draft)
	out := OutboundDecision{Allowed: true, Text: draft}

	for _, p := range e.activePolicies(ctx) {
		matched := matchKeywords(norm, p.Keywords)
		switch p.Type {
		case models.PolicyPricingClaim:
			if !matched && !priceClaimPattern.MatchString(lower) {
				continue
			}
			safe := p.Content(conv.Language)
			if safe == "" {
				return OutboundDecision{Allowed: false, Text: draft, MustEscalate: true, PolicyType: p.Type}
			}
			out.Text = safe
			out.PolicyType = p.Type
		case models.PolicyLegalDisclaimer:
			if !matched {
				continue
			}
			if disclosure := p.Content(conv.Language); disclosure != "" && !strings.Contains(out.Text, disclosure) {
				out.Text = out.Text + "\n\n" + disclosure
				out.PolicyType = p.Type
			}
		}
	}
	return out
}

func (e *Engine) activePolicies(ctx context.Context) []models.Policy {
	ps, err := e.policies.ListActive(ctx)
	if err != nil {
		// The reply path must not fail on a config read; proceed as if no
		// policies are configured.
		utils.LogWarn("failed to load active policies", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return ps
}

func matchKeywords(norm string, keywords []string) bool {
	for _, kw := range keywords {
		nkw := intent.Normalize(kw)
		if nkw != "" && strings.Contains(norm, nkw) {
			return true
		}
	}
	return false
}
