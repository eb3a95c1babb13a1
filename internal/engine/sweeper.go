package engine

import (
	"context"
	"errors"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

const (
	closedNoteAr = "تم إغلاق المحادثة تلقائياً لعدم النشاط. يسعدنا خدمتك في أي وقت."
	closedNoteHe = "השיחה נסגרה אוטומטית עקב חוסר פעילות. נשמח לעמוד לשירותך בכל עת."
)

// Sweeper closes conversations that have sat idle past the per-channel
// timeout. Webchat sessions go stale in minutes; phone-number channels may
// resume hours later, so they get a longer window.
type Sweeper struct {
	conversations repositories.ConversationRepo
	webchatIdle   time.Duration
	messagingIdle time.Duration
}

func NewSweeper(conversations repositories.ConversationRepo, webchatIdle, messagingIdle time.Duration) *Sweeper {
	if webchatIdle <= 0 {
		webchatIdle = 30 * time.Minute
	}
	if messagingIdle <= 0 {
		messagingIdle = 24 * time.Hour
	}
	return &Sweeper{
		conversations: conversations,
		webchatIdle:   webchatIdle,
		messagingIdle: messagingIdle,
	}
}

// CloseIdle runs one sweep over all channels and returns how many
// conversations it closed.
func (s *Sweeper) CloseIdle(ctx context.Context) int {
	now := time.Now()
	closed := 0
	for channel, idle := range map[models.Channel]time.Duration{
		models.ChannelWebchat:  s.webchatIdle,
		models.ChannelWhatsApp: s.messagingIdle,
		models.ChannelSMS:      s.messagingIdle,
	} {
		convs, err := s.conversations.ListIdle(ctx, channel, now.Add(-idle))
		if err != nil {
			utils.LogWarn("idle sweep query failed", map[string]interface{}{
				"channel": string(channel), "error": err.Error(),
			})
			continue
		}
		for i := range convs {
			if s.closeOne(ctx, &convs[i]) {
				closed++
			}
		}
	}
	if closed > 0 {
		utils.LogInfo("idle sweep closed conversations", map[string]interface{}{"count": closed})
	}
	return closed
}

func (s *Sweeper) closeOne(ctx context.Context, conv *models.Conversation) bool {
	if err := s.conversations.Transition(ctx, conv.ID, models.StatusClosed); err != nil {
		// Lost the race with a concurrent close; nothing to do.
		if !errors.Is(err, repositories.ErrConflict) {
			utils.LogWarn("idle close failed", map[string]interface{}{
				"conversation_id": conv.ID.String(), "error": err.Error(),
			})
		}
		return false
	}

	note := closedNoteAr
	if conv.Language == "he" {
		note = closedNoteHe
	}
	if err := s.conversations.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleSystem,
		Content:        note,
	}); err != nil {
		utils.LogWarn("failed to append closing note", map[string]interface{}{
			"conversation_id": conv.ID.String(), "error": err.Error(),
		})
	}
	return true
}
