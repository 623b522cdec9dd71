// Package store provides storage backends for chat transcripts.
//
// This file implements an SQLite-backed transcript store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrNoDSN
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between concurrent conversations.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddMessage(m models.ChatMessage) error {
	_, err := s.db.Exec(`INSERT INTO chat_messages (session_id, channel, role, body, source, rule, state, time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, string(m.Channel), string(m.Role), m.Body, nilIfEmpty(string(m.Source)), nilIfEmpty(m.Rule), m.State.String(), m.Time)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "session_id", m.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", m.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`SELECT session_id, channel, role, body, source, rule, state, time FROM chat_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *SQLiteStore) ListMessages() ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`SELECT session_id, channel, role, body, source, rule, state, time FROM chat_messages ORDER BY time, id`)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
