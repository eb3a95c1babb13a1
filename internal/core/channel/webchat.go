package channel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// WebchatRequest is the body the chat widget posts.
type WebchatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// WebchatAdapter serves the widget. The transport is pure request/response:
// the reply rides back on the HTTP response, so SendOutbound has nothing to
// deliver and a failure surfaces directly to the widget as an HTTP error.
type WebchatAdapter struct{}

func NewWebchatAdapter() *WebchatAdapter {
	return &WebchatAdapter{}
}

func (a *WebchatAdapter) Channel() models.Channel {
	return models.ChannelWebchat
}

func (a *WebchatAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var req WebchatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, ErrMalformedPayload
	}
	req.Message = strings.TrimSpace(req.Message)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.Message == "" || req.SessionID == "" {
		return nil, ErrMalformedPayload
	}
	return &InboundMessage{
		VisitorID:  req.SessionID,
		Channel:    models.ChannelWebchat,
		Text:       req.Message,
		ReceivedAt: time.Now(),
	}, nil
}

func (a *WebchatAdapter) SendOutbound(ctx context.Context, to string, reply *OutboundReply) (*DeliveryResult, error) {
	// Delivery happens in the HTTP response.
	return &DeliveryResult{Delivered: true}, nil
}
