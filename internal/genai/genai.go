// Package genai provides GenAI-backed chat sessions using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default model settings
const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	DefaultMaxRetries  = 1
)

var (
	// ErrNoChoicesReturned is returned when the API answers without any choice.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoCredential is returned when the API key is missing or a placeholder.
	ErrNoCredential = errors.New("openai api key not set")
)

// placeholderCredentials are values shipped in example env files.
var placeholderCredentials = []string{
	"placeholder_api_key",
	"your_api_key",
	"your-api-key",
	"your-api-key-here",
	"your_openai_api_key",
	"changeme",
}

// IsPlaceholderCredential reports whether key is empty or a known placeholder.
func IsPlaceholderCredential(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return true
	}
	for _, p := range placeholderCredentials {
		if k == p {
			return true
		}
	}
	return false
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	MaxRetries  int
	DebugMode   bool
	StateDir    string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens caps the length of each reply.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithMaxRetries sets SDK-level retries per call.
func WithMaxRetries(n int) Option {
	return func(o *Opts) { o.MaxRetries = n }
}

// WithDebugMode writes every request and response under StateDir/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) { o.DebugMode = enabled }
}

// WithStateDir sets where debug logs are written.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
	debugMode   bool
	stateDir    string
}

// NewClient initializes a new GenAI client. The API key comes from WithAPIKey,
// falling back to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		MaxRetries:  DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if IsPlaceholderCredential(cfg.APIKey) {
		return nil, ErrNoCredential
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "base_url_set", cfg.BaseURL != "", "debug", cfg.DebugMode)
	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// Complete sends messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.chat.Create(ctx, params)
	if c.debugMode {
		c.writeDebugLog("Complete", params, resp, err)
	}
	if err != nil {
		slog.Debug("Client.Complete: chat completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// writeDebugLog records one API exchange as JSON under stateDir/debug.
func (c *Client) writeDebugLog(method string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion, callErr error) {
	if c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Client.writeDebugLog: failed to create debug directory", "dir", dir, "error", err)
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  resp,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("Client.writeDebugLog: failed to marshal debug entry", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%d.json", strings.ToLower(method), time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		slog.Warn("Client.writeDebugLog: failed to write debug file", "error", err)
	}
}
