package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// SMSAdapter handles the Twilio SMS channel. Inbound messages arrive as
// form-encoded webhook posts; outbound goes through the Twilio REST API.
type SMSAdapter struct {
	client *twilio.RestClient
	from   string
}

// SMSConfig holds the Twilio credentials.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

func NewSMSAdapter(cfg SMSConfig) (*SMSAdapter, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSAdapter{
		client: client,
		from:   cfg.From,
	}, nil
}

func (a *SMSAdapter) Channel() models.Channel {
	return models.ChannelSMS
}

// ParseInbound reads Twilio's application/x-www-form-urlencoded webhook body.
func (a *SMSAdapter) ParseInbound(raw []byte) (*InboundMessage, error) {
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, ErrMalformedPayload
	}

	from := strings.TrimSpace(form.Get("From"))
	body := strings.TrimSpace(form.Get("Body"))
	sid := strings.TrimSpace(form.Get("MessageSid"))

	if from == "" || sid == "" {
		return nil, ErrMalformedPayload
	}
	if body == "" {
		return nil, ErrNotAMessage
	}

	return &InboundMessage{
		VisitorID:         from,
		Channel:           models.ChannelSMS,
		Text:              body,
		ProviderMessageID: sid,
		From:              from,
		ReceivedAt:        time.Now(),
	}, nil
}

func (a *SMSAdapter) SendOutbound(ctx context.Context, to string, reply *OutboundReply) (*DeliveryResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(a.from)
	params.SetTo(to)
	params.SetBody(reply.Text)

	resp, err := a.client.Api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("sms send failed: %w", err)
	}

	out := &DeliveryResult{Delivered: true}
	if resp.Sid != nil {
		out.ProviderID = *resp.Sid
	}
	return out, nil
}
