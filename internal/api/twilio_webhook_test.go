package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/testutil"
	"github.com/mastermind-creat/tech.safi-sub001/internal/twiliowhatsapp"
)

const testWebhookURL = "https://techsafi.example/webhooks/twilio"

func webhookRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func twilioSignature(token, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := webhookURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioWebhook_RestSender(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	s, st := newTestServer(t, nil, WithWhatsAppSender(mock))

	form := url.Values{"From": {"whatsapp:+254700000001"}, "Body": {"How much for a mobile app?"}}
	rr := serve(s, webhookRequest(form))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")
	if strings.Contains(rr.Body.String(), "<Message>") {
		t.Errorf("reply should go through the REST sender, got TwiML %s", rr.Body.String())
	}

	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "+254700000001" || !strings.Contains(sent[0].Body, "KES") {
		t.Fatalf("unexpected WhatsApp delivery: %+v", sent)
	}

	info, err := s.manager.Get("whatsapp:+254700000001")
	if err != nil || info.Channel != models.ChannelWhatsApp {
		t.Fatalf("expected WhatsApp conversation, got %+v, %v", info, err)
	}
	if msgs, _ := st.GetMessages(info.ID); len(msgs) != 2 || msgs[1].Rule != "pricing" {
		t.Errorf("unexpected transcript: %+v", msgs)
	}

	// A second message reuses the same conversation.
	serve(s, webhookRequest(url.Values{"From": {"whatsapp:+254700000001"}, "Body": {"thanks"}}))
	if len(s.manager.List()) != 1 {
		t.Errorf("expected a single conversation per number, got %d", len(s.manager.List()))
	}
}

func TestTwilioWebhook_InlineTwiML(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := serve(s, webhookRequest(url.Values{"From": {"whatsapp:+254700000002"}, "Body": {"hello"}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook inline")
	body := rr.Body.String()
	if !strings.Contains(body, "<Response><Message>") || !strings.Contains(body, "Hello!") {
		t.Errorf("expected inline TwiML greeting, got %s", body)
	}
	if rr.Header().Get("Content-Type") != "application/xml" {
		t.Errorf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
}

func TestTwilioWebhook_DeliveryFailureStillAcks(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	mock.Err = errors.New("twilio down")
	s, _ := newTestServer(t, nil, WithWhatsAppSender(mock))
	rr := serve(s, webhookRequest(url.Values{"From": {"whatsapp:+254700000003"}, "Body": {"hi"}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delivery failure")
}

func TestTwilioWebhook_BadInput(t *testing.T) {
	s, st := newTestServer(t, nil)

	rr := serve(s, webhookRequest(url.Values{"Body": {"hi"}}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing From")

	rr = serve(s, webhookRequest(url.Values{"From": {"whatsapp:+254700000004"}, "Body": {"  "}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "empty body")
	if strings.Contains(rr.Body.String(), "<Message>") {
		t.Error("empty body should get no reply")
	}
	if msgs, _ := st.ListMessages(); len(msgs) != 0 {
		t.Errorf("nothing should be recorded, got %d", len(msgs))
	}
}

func TestTwilioWebhook_Signature(t *testing.T) {
	s, _ := newTestServer(t, nil, WithTwilioSignature("secret", testWebhookURL))
	form := url.Values{"From": {"whatsapp:+254700000005"}, "Body": {"hello"}}

	rr := serve(s, webhookRequest(form))
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "unsigned request")

	req := webhookRequest(form)
	req.Header.Set(twiliowhatsapp.SignatureHeader, twilioSignature("wrong", testWebhookURL, form))
	rr = serve(s, req)
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "bad signature")

	req = webhookRequest(form)
	req.Header.Set(twiliowhatsapp.SignatureHeader, twilioSignature("secret", testWebhookURL, form))
	rr = serve(s, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "signed request")
}
