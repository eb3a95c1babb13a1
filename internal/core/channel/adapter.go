package channel

import (
	"context"
	"errors"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// InboundMessage is the canonical form every transport is normalized into.
type InboundMessage struct {
	VisitorID         string
	Channel           models.Channel
	Text              string
	ProviderMessageID string // empty for webchat; dedupe key for webhooks
	From              string // sender phone for whatsapp/sms
	ReceivedAt        time.Time
}

// OutboundReply is what the engine hands back for delivery.
type OutboundReply struct {
	Text         string
	QuickReplies []string
	Escalate     bool
	Language     string
}

// DeliveryResult reports the provider's acknowledgement of a send.
type DeliveryResult struct {
	ProviderID string
	Delivered  bool
}

var (
	// ErrMalformedPayload rejects an inbound body that cannot be parsed.
	// Handlers answer it with a 4xx; it never reaches the pipeline.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNotAMessage marks payloads that parse fine but carry no user
	// message (delivery receipts, status callbacks, echoes of our own
	// sends). Handlers acknowledge these with a fast 200 and move on.
	ErrNotAMessage = errors.New("not a user message")
)

// Adapter translates between one transport and the canonical message
// model. The channel set is closed: webchat, whatsapp, sms.
type Adapter interface {
	Channel() models.Channel
	ParseInbound(raw []byte) (*InboundMessage, error)
	SendOutbound(ctx context.Context, to string, reply *OutboundReply) (*DeliveryResult, error)
}
