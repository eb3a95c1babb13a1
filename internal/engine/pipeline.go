package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/quicknet-il/support-bot-be/internal/core/analytics"
	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/core/escalation"
	"github.com/quicknet-il/support-bot-be/internal/core/guardrail"
	"github.com/quicknet-il/support-bot-be/internal/core/intent"
	"github.com/quicknet-il/support-bot-be/internal/core/reply"
	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

const defaultHistoryDepth = 12

// Pipeline runs one inbound message through the whole conversational
// engine: store, classifier, guardrails, reply generation, escalation,
// analytics. Handlers are stateless; every turn reconstructs conversation
// state from the store.
type Pipeline struct {
	conversations repositories.ConversationRepo
	guard         *guardrail.Engine
	generator     *reply.Generator
	escalation    *escalation.Machine
	analytics     *analytics.Recorder
	historyDepth  int
}

func NewPipeline(
	conversations repositories.ConversationRepo,
	guard *guardrail.Engine,
	generator *reply.Generator,
	escalationMachine *escalation.Machine,
	recorder *analytics.Recorder,
) *Pipeline {
	return &Pipeline{
		conversations: conversations,
		guard:         guard,
		generator:     generator,
		escalation:    escalationMachine,
		analytics:     recorder,
		historyDepth:  defaultHistoryDepth,
	}
}

// HandleInbound processes one user turn and returns the reply to deliver.
// A nil reply with nil error means the message needed no bot turn: either
// a duplicate webhook delivery (already answered) or a conversation that
// a human agent owns.
func (p *Pipeline) HandleInbound(ctx context.Context, in *channel.InboundMessage) (*channel.OutboundReply, error) {
	conv, created, err := p.conversations.GetOrCreate(ctx, in.VisitorID, in.Channel)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	if created {
		go p.analytics.RecordConversation(in.Channel)
	}

	// Persist the user's turn before any further processing so a crash
	// later cannot lose it. Duplicate webhook deliveries stop here.
	userMsg := &models.Message{
		ConversationID:    conv.ID,
		Role:              models.RoleUser,
		Content:           in.Text,
		ProviderMessageID: in.ProviderMessageID,
	}
	if err := p.conversations.AppendMessage(ctx, userMsg); err != nil {
		if errors.Is(err, repositories.ErrDuplicateDelivery) {
			utils.LogInfo("duplicate delivery dropped", map[string]interface{}{
				"provider_message_id": in.ProviderMessageID, "channel": string(in.Channel),
			})
			return nil, nil
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	// Language sticks to the first detection.
	language := conv.Language
	if language == "" {
		language = intent.DetectLanguage(in.Text)
		conv.Language = language
	}
	if conv.CustomerPhone == "" && in.From != "" {
		conv.CustomerPhone = in.From
	}

	// A human owns escalated conversations; the bot only records the turn.
	if conv.Status == models.StatusEscalated {
		if err := p.conversations.SetTurnMeta(ctx, conv.ID, language, ""); err != nil {
			utils.LogWarn("failed to update conversation meta", map[string]interface{}{"error": err.Error()})
		}
		go p.analytics.RecordMessages(in.Channel, 1)
		return nil, nil
	}

	history, err := p.conversations.RecentMessages(ctx, conv.ID, p.historyDepth)
	if err != nil {
		utils.LogWarn("failed to load history", map[string]interface{}{"error": err.Error()})
		history = []models.Message{*userMsg}
	}

	// Classify, with the guardrail override winning over the classifier.
	inboundDec := p.guard.CheckInbound(ctx, in.Text, language)
	var result intent.Result
	if inboundDec.ForcedIntent != "" {
		result = intent.Result{Intent: inboundDec.ForcedIntent, Confidence: 1.0}
	} else {
		result = intent.Classify(in.Text, history)
	}

	if err := p.conversations.SetMessageIntent(ctx, userMsg.ID, result.Intent); err != nil {
		utils.LogWarn("failed to set message intent", map[string]interface{}{"error": err.Error()})
	}
	if err := p.conversations.SetTurnMeta(ctx, conv.ID, language, result.Intent); err != nil {
		utils.LogWarn("failed to update conversation meta", map[string]interface{}{"error": err.Error()})
	}
	conv.Intent = result.Intent
	setHistoryIntent(history, userMsg.ID, result.Intent)

	// Generate, then post-check the draft.
	var rep *reply.Reply
	mustEscalate := false
	if inboundDec.Blocked {
		text := inboundDec.Reply
		if text == "" {
			text = reply.EscalationNotice(language)
		}
		rep = &reply.Reply{Text: text, Source: reply.SourcePolicy}
		mustEscalate = true
	} else {
		rep = p.generator.Generate(ctx, result.Intent, conv, history)
		outDec := p.guard.CheckOutbound(ctx, rep.Text, conv)
		if !outDec.Allowed {
			rep = &reply.Reply{Text: reply.EscalationNotice(language), Source: reply.SourcePolicy}
			mustEscalate = true
		} else {
			rep.Text = outDec.Text
		}
	}

	escalated := false
	if reason, ok := p.escalation.ShouldEscalate(result.Intent, inboundDec.Blocked, mustEscalate, history); ok {
		if _, err := p.escalation.Escalate(ctx, conv, reason, history); err != nil {
			utils.LogError("escalation failed", err, map[string]interface{}{
				"conversation_id": conv.ID.String(),
			})
		} else {
			escalated = true
			// the "didn't understand" text would ring false on the turn
			// that actually hands the conversation over
			if rep.Source == reply.SourceFallback {
				rep = &reply.Reply{Text: reply.EscalationNotice(language), Source: reply.SourcePolicy}
			}
			go p.analytics.RecordHandoff(in.Channel)
		}
	}

	botMsg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleBot,
		Content:        rep.Text,
	}
	if err := p.conversations.AppendMessage(ctx, botMsg); err != nil {
		utils.LogError("failed to persist bot reply", err, map[string]interface{}{
			"conversation_id": conv.ID.String(),
		})
	}

	// user + bot turns; the escalation marker counts as its own message.
	recorded := 2
	if escalated {
		recorded++
	}
	go p.analytics.RecordMessages(in.Channel, recorded)

	return &channel.OutboundReply{
		Text:         rep.Text,
		QuickReplies: rep.QuickReplies,
		Escalate:     escalated,
		Language:     language,
	}, nil
}

// setHistoryIntent mirrors the freshly classified intent onto the local
// history copy so the streak check sees the current turn.
func setHistoryIntent(history []models.Message, messageID uuid.UUID, intentName string) {
	for i := range history {
		if history[i].ID == messageID {
			history[i].Intent = intentName
		}
	}
}
