// Package api exposes the Tech Safi assistant over HTTP.
//
// The website widget talks to the JSON and WebSocket endpoints, and WhatsApp
// visitors arrive through the Twilio webhook. Every channel resolves through the
// same session.Manager.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mastermind-creat/tech.safi-sub001/internal/session"
	"github.com/mastermind-creat/tech.safi-sub001/internal/twiliowhatsapp"
)

// Defaults for the HTTP server.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	maxRequestBodyBytes    = 64 << 10
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr             string
	CORSOrigins      []string
	Sender           twiliowhatsapp.Sender
	TwilioAuthToken  string
	TwilioWebhookURL string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(o *Opts) { o.CORSOrigins = origins }
}

// WithWhatsAppSender delivers webhook replies through sender instead of inline TwiML.
func WithWhatsAppSender(sender twiliowhatsapp.Sender) Option {
	return func(o *Opts) { o.Sender = sender }
}

// WithTwilioSignature enables X-Twilio-Signature checks against the public webhook URL.
func WithTwilioSignature(authToken, webhookURL string) Option {
	return func(o *Opts) {
		o.TwilioAuthToken = authToken
		o.TwilioWebhookURL = webhookURL
	}
}

// Server serves the chat API.
type Server struct {
	manager    *session.Manager
	sender     twiliowhatsapp.Sender
	validator  *twiliowhatsapp.Validator
	webhookURL string
	addr       string
	// wsOrigins are host patterns for websocket.AcceptOptions.OriginPatterns.
	wsOrigins []string
	router    chi.Router
}

// NewServer creates a Server over manager.
func NewServer(manager *session.Manager, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, CORSOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		manager:   manager,
		sender:    cfg.Sender,
		addr:      cfg.Addr,
		wsOrigins: originPatterns(cfg.CORSOrigins),
	}
	if cfg.TwilioAuthToken != "" && cfg.TwilioWebhookURL != "" {
		s.validator = twiliowhatsapp.NewValidator(cfg.TwilioAuthToken)
		s.webhookURL = cfg.TwilioWebhookURL
	} else {
		slog.Warn("Server.NewServer: Twilio signature validation disabled", "token_set", cfg.TwilioAuthToken != "", "url_set", cfg.TwilioWebhookURL != "")
	}
	s.router = s.routes(cfg.CORSOrigins)

	slog.Debug("Server.NewServer: created", "addr", s.addr, "whatsapp_sender", s.sender != nil, "signature_check", s.validator != nil)
	return s
}

func (s *Server) routes(corsOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(CORS(corsOrigins))

	r.Route("/chat", func(r chi.Router) {
		r.Get("/stats", s.statsHandler)
		r.Post("/sessions", s.createSessionHandler)
		r.Get("/sessions", s.listSessionsHandler)
		r.Get("/sessions/{id}", s.getSessionHandler)
		r.Delete("/sessions/{id}", s.closeSessionHandler)
		r.Post("/sessions/{id}/messages", s.sendMessageHandler)
		r.Get("/sessions/{id}/messages", s.transcriptHandler)
	})
	r.Get("/ws/chat", s.websocketHandler)
	r.Post("/webhooks/twilio", s.twilioWebhookHandler)
	return r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server.Run: server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: forced shutdown", "error", err)
		return err
	}
	slog.Info("Server.Run: stopped")
	return nil
}
