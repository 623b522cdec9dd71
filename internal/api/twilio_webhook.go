package api

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/twiliowhatsapp"
)

// twimlResponse is the TwiML document returned to Twilio.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func writeTwiML(w http.ResponseWriter, message string) {
	data, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		slog.Error("Server.writeTwiML: failed to marshal TwiML", "error", err)
		data = []byte("<Response></Response>")
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(data)
}

// twilioWebhookHandler answers an inbound WhatsApp message. Each sender number is
// its own conversation. With a REST sender the reply goes out through the Twilio
// API; otherwise it is returned inline as TwiML.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !s.validator.Validate(s.webhookURL, params, r.Header.Get(twiliowhatsapp.SignatureHeader)) {
			slog.Warn("Server.twilioWebhookHandler: signature rejected", "ip", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	from := twiliowhatsapp.PhoneNumber(r.PostForm.Get("From"))
	body := strings.TrimSpace(r.PostForm.Get("Body"))
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}
	if body == "" {
		// Media-only or empty messages get no reply.
		slog.Debug("Server.twilioWebhookHandler: ignoring empty body", "from", from)
		writeTwiML(w, "")
		return
	}
	if len(body) > models.MaxMessageLength {
		body = strings.ToValidUTF8(body[:models.MaxMessageLength], "")
	}

	info := s.manager.GetOrOpen(twiliowhatsapp.WhatsAppAddress(from), models.ChannelWhatsApp)
	reply, info, err := s.manager.Send(resolveContext(r), info.ID, body)
	if err != nil {
		slog.Error("Server.twilioWebhookHandler: resolve failed", "error", err, "from", from)
		writeTwiML(w, "")
		return
	}
	slog.Info("Server.twilioWebhookHandler: replied", "from", from, "source", reply.Source, "rule", reply.Rule, "state", info.State)

	if s.sender == nil {
		writeTwiML(w, reply.Text)
		return
	}
	if err := s.sender.SendMessage(resolveContext(r), from, reply.Text); err != nil {
		slog.Error("Server.twilioWebhookHandler: delivery failed", "error", err, "from", from)
	}
	writeTwiML(w, "")
}
