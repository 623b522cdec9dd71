// Package store provides storage backends for chat transcripts.
//
// This file implements a PostgreSQL-backed transcript store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrNoDSN
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddMessage(m models.ChatMessage) error {
	_, err := s.db.Exec(`INSERT INTO chat_messages (session_id, channel, role, body, source, rule, state, time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.SessionID, string(m.Channel), string(m.Role), m.Body, nilIfEmpty(string(m.Source)), nilIfEmpty(m.Rule), m.State.String(), m.Time)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "session_id", m.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", m.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetMessages(sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`SELECT session_id, channel, role, body, source, rule, state, time FROM chat_messages WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *PostgresStore) ListMessages() ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`SELECT session_id, channel, role, body, source, rule, state, time FROM chat_messages ORDER BY time, id`)
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
