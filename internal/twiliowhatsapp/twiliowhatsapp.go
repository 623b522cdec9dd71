// Package twiliowhatsapp delivers assistant replies to WhatsApp visitors through Twilio.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SignatureHeader carries Twilio's webhook signature.
const SignatureHeader = "X-Twilio-Signature"

var (
	// ErrMissingCredentials is returned when the account SID or auth token is unset.
	ErrMissingCredentials = errors.New("account SID and auth token must be provided")
	// ErrMissingFromNumber is returned when no sending number is configured.
	ErrMissingFromNumber = errors.New("from number must be provided")
)

// Sender sends a plain text WhatsApp message.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending WhatsApp number, with or without the "whatsapp:" prefix.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client     *twilio.RestClient
	fromNumber string // "whatsapp:+254700000000"
}

// NewClient creates a Client, falling back to TWILIO_* environment variables for unset options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.FromNumber == "" {
		return nil, ErrMissingFromNumber
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: WhatsAppAddress(cfg.FromNumber),
	}, nil
}

// SendMessage sends body to the WhatsApp number to.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(to))
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// WhatsAppAddress adds the "whatsapp:" channel prefix if it is missing.
func WhatsAppAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// PhoneNumber strips the "whatsapp:" channel prefix from a webhook From field.
func PhoneNumber(address string) string {
	return strings.TrimPrefix(address, "whatsapp:")
}

// Validator checks the signature Twilio attaches to webhook requests.
type Validator struct {
	rv twilioClient.RequestValidator
}

// NewValidator creates a Validator for authToken.
func NewValidator(authToken string) *Validator {
	return &Validator{rv: twilioClient.NewRequestValidator(authToken)}
}

// Validate reports whether signature matches the public webhook URL and form params.
func (v *Validator) Validate(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return v.rv.Validate(url, params, signature)
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	// Err, when set, is returned by every SendMessage call.
	Err error
}

// SentMessage is one message captured by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the captured messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
