package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// WhatsAppAdapter speaks the WhatsApp Cloud API (Meta Business).
// Documentation: https://developers.facebook.com/docs/whatsapp/cloud-api
type WhatsAppAdapter struct {
	baseURL     string
	phoneID     string
	accessToken string
	verifyToken string
	client      *http.Client
}

// WhatsAppConfig holds the Cloud API credentials.
type WhatsAppConfig struct {
	PhoneID     string
	AccessToken string
	VerifyToken string
	APIVersion  string
}

func NewWhatsAppAdapter(cfg WhatsAppConfig) (*WhatsAppAdapter, error) {
	if cfg.PhoneID == "" {
		return nil, fmt.Errorf("whatsapp phone_id is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("whatsapp access_token is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v18.0"
	}

	return &WhatsAppAdapter{
		baseURL:     fmt.Sprintf("https://graph.facebook.com/%s/%s", cfg.APIVersion, cfg.PhoneID),
		phoneID:     cfg.PhoneID,
		accessToken: cfg.AccessToken,
		verifyToken: cfg.VerifyToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (a *WhatsAppAdapter) Channel() models.Channel {
	return models.ChannelWhatsApp
}

// webhookPayload mirrors the Cloud API webhook envelope.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
				} `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (a *WhatsAppAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil || msg.Text.Body == "" {
					continue
				}
				return &InboundMessage{
					VisitorID:         msg.From,
					Channel:           models.ChannelWhatsApp,
					Text:              msg.Text.Body,
					ProviderMessageID: msg.ID,
					From:              msg.From,
					ReceivedAt:        time.Now(),
				}, nil
			}
		}
	}
	// Status callbacks and non-text events land here.
	return nil, ErrNotAMessage
}

func (a *WhatsAppAdapter) SendOutbound(ctx context.Context, to string, reply *OutboundReply) (*DeliveryResult, error) {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": reply.Text},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whatsapp send returned status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &DeliveryResult{Delivered: true}, nil
	}

	out := &DeliveryResult{Delivered: true}
	if len(result.Messages) > 0 {
		out.ProviderID = result.Messages[0].ID
	}
	return out, nil
}

// VerifyWebhook answers the Cloud API subscription handshake. It returns
// the challenge to echo and whether the token matched.
func (a *WhatsAppAdapter) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token != "" && token == a.verifyToken {
		return challenge, true
	}
	return "", false
}
