// Package store provides storage backends for chat transcripts.
//
// It includes an in-memory store for development and tests, plus SQLite and
// PostgreSQL stores for deployments. Transcripts are kept for review only; the
// connectivity state of a live conversation is never restored from them.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// ErrNoDSN is returned when a database store is created without a DSN.
var ErrNoDSN = errors.New("database DSN not set")

// MemoryDSN selects the in-memory store explicitly.
const MemoryDSN = "memory"

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN sets the DSN for a PostgreSQL store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the file path for a SQLite store.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store defines the interface for transcript storage.
type Store interface {
	AddMessage(m models.ChatMessage) error
	GetMessages(sessionID string) ([]models.ChatMessage, error)
	ListMessages() ([]models.ChatMessage, error)
	Close() error
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// New opens the store matching dsn, or an in-memory store when dsn is empty or MemoryDSN.
func New(dsn string) (Store, error) {
	if dsn == "" || dsn == MemoryDSN {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		pg, err := NewPostgresStore(WithPostgresDSN(dsn))
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// Stats aggregates a transcript into per-source, per-rule and per-channel counts.
func Stats(messages []models.ChatMessage) models.ChatStats {
	stats := models.ChatStats{
		RepliesBySource:   map[models.ReplySource]int{},
		RepliesByRule:     map[string]int{},
		SessionsByChannel: map[models.Channel]int{},
	}
	sessions := map[string]models.Channel{}
	for _, m := range messages {
		stats.TotalMessages++
		sessions[m.SessionID] = m.Channel
		if m.Role == models.RoleUser {
			stats.UserMessages++
			continue
		}
		stats.RepliesBySource[m.Source]++
		if m.Rule != "" {
			stats.RepliesByRule[m.Rule]++
		}
	}
	stats.Sessions = len(sessions)
	for _, ch := range sessions {
		stats.SessionsByChannel[ch]++
	}
	return stats
}

// InMemoryStore is a simple in-memory transcript store.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddMessage(m models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *InMemoryStore) GetMessages(sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListMessages() ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.ChatMessage(nil), s.messages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
