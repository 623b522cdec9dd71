package chatbot

import (
	"context"
	"log/slog"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// Session is an established conversation with a remote assistant.
type Session interface {
	Send(ctx context.Context, text string) (string, error)
}

// SessionFactory constructs a Session from a credential.
type SessionFactory func(credential string) (Session, error)

// Initialize makes the single attempt to open a remote session for a conversation.
// Any failure yields StateFallback and a nil session; it is logged, never returned.
func Initialize(credential string, factory SessionFactory) (Session, models.ConnectivityState) {
	if factory == nil {
		slog.Info("chatbot.Initialize: no ai backend configured, using fallback", "failure", FailureInitialization)
		return nil, models.StateFallback
	}
	session, err := factory(credential)
	if err != nil {
		slog.Warn("chatbot.Initialize: ai session unavailable, using fallback", "failure", FailureInitialization, "error", err)
		return nil, models.StateFallback
	}
	if session == nil {
		slog.Warn("chatbot.Initialize: factory returned no session, using fallback", "failure", FailureInitialization)
		return nil, models.StateFallback
	}
	slog.Debug("chatbot.Initialize: ai session established")
	return session, models.StateActive
}
