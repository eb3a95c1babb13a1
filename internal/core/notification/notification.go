package notification

import (
	"context"
	"fmt"

	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// Sender is the one-way "message the store owner" capability. Delivery is
// best-effort everywhere it is used: a failure is logged, never retried
// synchronously, and never blocks the caller.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// WhatsAppSender delivers admin notifications over the WhatsApp channel.
type WhatsAppSender struct {
	adapter    channel.Adapter
	adminPhone string
}

func NewWhatsAppSender(adapter channel.Adapter, adminPhone string) (*WhatsAppSender, error) {
	if adminPhone == "" {
		return nil, fmt.Errorf("admin phone is required")
	}
	return &WhatsAppSender{adapter: adapter, adminPhone: adminPhone}, nil
}

func (s *WhatsAppSender) Send(ctx context.Context, text string) error {
	_, err := s.adapter.SendOutbound(ctx, s.adminPhone, &channel.OutboundReply{Text: text})
	if err != nil {
		return fmt.Errorf("admin notification failed: %w", err)
	}
	return nil
}

// NoopSender is used when no admin contact is configured.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, text string) error {
	utils.LogWarn("admin notification dropped, no admin contact configured", map[string]interface{}{
		"text": text,
	})
	return nil
}
