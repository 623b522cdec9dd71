package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"sort"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "+254700000001", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Body != "Hello Test" || sent[0].To != "+254700000001" {
		t.Errorf("unexpected message: %+v", sent[0])
	}
}

func TestMockClient_Error(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(context.Background(), "+1", "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.Sent()) != 0 {
		t.Error("failed send should not be recorded")
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); !errors.Is(err, ErrMissingFromNumber) {
		t.Errorf("expected ErrMissingFromNumber, got %v", err)
	}

	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromNumber != "whatsapp:+14155238886" {
		t.Errorf("expected prefixed from number, got %q", c.fromNumber)
	}
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+14155238886")
	c, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromNumber != "whatsapp:+14155238886" {
		t.Errorf("prefix should not be doubled, got %q", c.fromNumber)
	}
}

func TestAddressHelpers(t *testing.T) {
	if got := WhatsAppAddress("+254700000001"); got != "whatsapp:+254700000001" {
		t.Errorf("WhatsAppAddress = %q", got)
	}
	if got := PhoneNumber("whatsapp:+254700000001"); got != "+254700000001" {
		t.Errorf("PhoneNumber = %q", got)
	}
	if got := PhoneNumber("+254700000001"); got != "+254700000001" {
		t.Errorf("PhoneNumber without prefix = %q", got)
	}
}

// sign computes a webhook signature the way Twilio does.
func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := url
	for _, k := range keys {
		payload += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidator(t *testing.T) {
	url := "https://techsafi.example/webhooks/twilio"
	params := map[string]string{"From": "whatsapp:+254700000001", "Body": "hello"}
	v := NewValidator("secret")

	if !v.Validate(url, params, sign("secret", url, params)) {
		t.Error("expected valid signature to pass")
	}
	if v.Validate(url, params, sign("other", url, params)) {
		t.Error("signature from another token should fail")
	}
	if v.Validate(url, params, "") {
		t.Error("missing signature should fail")
	}
	tampered := map[string]string{"From": "whatsapp:+254700000001", "Body": "changed"}
	if v.Validate(url, tampered, sign("secret", url, params)) {
		t.Error("tampered params should fail")
	}
}
