// Package models defines the core data structures for the Tech Safi chat service.
//
// It includes chat messages, conversation summaries and the JSON envelope shared by
// the API, store and session modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a user utterance
	MaxMessageLength = 2000
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// Role identifies who authored a transcript entry.
type Role string

const (
	// RoleUser marks text typed by the visitor.
	RoleUser Role = "user"
	// RoleAssistant marks text produced by the assistant.
	RoleAssistant Role = "assistant"
)

// ReplySource records which path produced an assistant reply.
type ReplySource string

const (
	// ReplySourceAI means the remote AI session answered.
	ReplySourceAI ReplySource = "ai"
	// ReplySourceRule means a rule table entry matched.
	ReplySourceRule ReplySource = "rule"
	// ReplySourceDefault means no rule matched and the guidance message was used.
	ReplySourceDefault ReplySource = "default"
)

// Channel identifies how a visitor reached the assistant.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelWebSocket Channel = "websocket"
	ChannelWhatsApp  Channel = "whatsapp"
)

// ChatMessage is one persisted transcript entry.
type ChatMessage struct {
	SessionID string            `json:"session_id"`
	Channel   Channel           `json:"channel"`
	Role      Role              `json:"role"`
	Body      string            `json:"body"`
	Source    ReplySource       `json:"source,omitempty"` // assistant entries only
	Rule      string            `json:"rule,omitempty"`   // matched rule name, if any
	State     ConnectivityState `json:"state"`            // state after this entry
	Time      int64             `json:"time"`
}

// ChatMessageRequest is the body of POST /chat/sessions/{id}/messages.
type ChatMessageRequest struct {
	Message string `json:"message"`
}

// Validate checks that the utterance is non-empty after trimming and within limits.
func (r *ChatMessageRequest) Validate() error {
	trimmed := strings.TrimSpace(r.Message)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if len(trimmed) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// SessionInfo describes a live conversation.
type SessionInfo struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	State        ConnectivityState `json:"state"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
}

// ChatStats summarises stored transcripts.
type ChatStats struct {
	TotalMessages     int                 `json:"total_messages"`
	UserMessages      int                 `json:"user_messages"`
	Sessions          int                 `json:"sessions"`
	RepliesBySource   map[ReplySource]int `json:"replies_by_source"`
	RepliesByRule     map[string]int      `json:"replies_by_rule"`
	SessionsByChannel map[Channel]int     `json:"sessions_by_channel"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
