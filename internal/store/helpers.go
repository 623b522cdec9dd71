package store

import (
	"database/sql"
	"fmt"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanMessages drains rows into ChatMessages and closes them.
func scanMessages(rows *sql.Rows) ([]models.ChatMessage, error) {
	defer rows.Close()
	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var channel, role, state string
		var source, rule sql.NullString
		if err := rows.Scan(&m.SessionID, &channel, &role, &m.Body, &source, &rule, &state, &m.Time); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Channel = models.Channel(channel)
		m.Role = models.Role(role)
		m.Source = models.ReplySource(source.String)
		m.Rule = rule.String
		parsed, err := models.ParseConnectivityState(state)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.State = parsed
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}
