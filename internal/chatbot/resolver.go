// Package chatbot turns visitor utterances into displayable replies.
//
// A conversation starts with Initialize, which tries to open a remote AI session.
// Resolve then answers through that session while it is healthy and drops to the
// ordered RuleTable for the rest of the conversation after the first failure.
// No AI-path failure is ever returned to the caller; it is logged and absorbed.
package chatbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// DefaultTimeout bounds a single remote AI call.
const DefaultTimeout = 12 * time.Second

var (
	// ErrEmptyUtterance is returned when the utterance is blank after trimming.
	ErrEmptyUtterance = errors.New("utterance is empty")
	// ErrEmptyReply marks an AI call that succeeded without any text.
	ErrEmptyReply = errors.New("ai session returned an empty reply")
	// ErrNoSession marks an active conversation with no session attached.
	ErrNoSession = errors.New("no ai session")
)

// FailureKind classifies an absorbed AI-path failure.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureInitialization FailureKind = "initialization"
	FailureTransport      FailureKind = "transport"
	FailureEmptyReply     FailureKind = "empty_reply"
)

// Reply is the resolved answer for one utterance.
type Reply struct {
	Text    string             `json:"text"`
	Source  models.ReplySource `json:"source"`
	Rule    string             `json:"rule,omitempty"`
	Failure FailureKind        `json:"failure,omitempty"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the bound on each AI call. Zero or less disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithFallbackDelay pauses before returning a rule-based reply, so the widget can
// show a typing indicator. It never delays AI replies.
func WithFallbackDelay(d time.Duration) Option {
	return func(r *Resolver) { r.fallbackDelay = d }
}

// Resolver dispatches between the AI session and the rule table. It holds no
// per-conversation state, so one Resolver serves every conversation.
type Resolver struct {
	rules         *RuleTable
	timeout       time.Duration
	fallbackDelay time.Duration
}

// NewResolver creates a Resolver over rules.
func NewResolver(rules *RuleTable, opts ...Option) *Resolver {
	r := &Resolver{rules: rules, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	slog.Debug("Resolver.NewResolver: created", "rules", len(rules.rules), "timeout", r.timeout, "fallback_delay", r.fallbackDelay)
	return r
}

// Resolve answers utterance given the conversation's current state and returns the
// next state. The only error is ErrEmptyUtterance, in which case state is unchanged.
func (r *Resolver) Resolve(ctx context.Context, utterance string, state models.ConnectivityState, ai Session) (Reply, models.ConnectivityState, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Reply{}, state, ErrEmptyUtterance
	}

	if state == models.StateActive {
		answer, err := r.ask(ctx, ai, text)
		if err == nil {
			return Reply{Text: answer, Source: models.ReplySourceAI}, models.StateActive, nil
		}
		kind := classify(err)
		slog.Warn("Resolver.Resolve: ai call failed, switching to fallback", "failure", kind, "error", err)
		reply := r.fallback(ctx, text)
		reply.Failure = kind
		return reply, models.StateFallback, nil
	}

	return r.fallback(ctx, text), state, nil
}

func (r *Resolver) ask(ctx context.Context, ai Session, text string) (string, error) {
	if ai == nil {
		return "", ErrNoSession
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	// Buffered so a session that ignores ctx cannot block this goroutine forever.
	done := make(chan result, 1)
	go func() {
		answer, err := ai.Send(ctx, text)
		done <- result{answer, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		if strings.TrimSpace(res.text) == "" {
			return "", ErrEmptyReply
		}
		return strings.TrimSpace(res.text), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Resolver) fallback(ctx context.Context, text string) Reply {
	reply := r.rules.Resolve(text)
	if r.fallbackDelay > 0 {
		t := time.NewTimer(r.fallbackDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	slog.Debug("Resolver.fallback: resolved from rule table", "source", reply.Source, "rule", reply.Rule)
	return reply
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrEmptyReply):
		return FailureEmptyReply
	case errors.Is(err, ErrNoSession):
		return FailureInitialization
	default:
		return FailureTransport
	}
}
