package genai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params []openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = append(m.params, params)
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completion("Hello World")}, model: "test-model"}
	out, err := client.Complete(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestComplete_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.Complete(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.Complete(context.Background(), nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestNewClient_PlaceholderKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	for _, key := range []string{"PLACEHOLDER_API_KEY", "your-api-key-here", " changeme "} {
		if _, err := NewClient(WithAPIKey(key)); !errors.Is(err, ErrNoCredential) {
			t.Errorf("key %q: expected ErrNoCredential, got %v", key, err)
		}
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-test"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.Model() != "gpt-test" {
		t.Errorf("expected model gpt-test, got %s", cli.Model())
	}
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	if _, err := NewClient(); err != nil {
		t.Errorf("expected env key to be used, got %v", err)
	}
}

func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()
	client := &Client{
		chat:        &mockChatService{resp: completion("Test response")},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debugMode:   true,
		stateDir:    tempDir,
	}

	if _, err := client.Complete(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(tempDir, "debug"))
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}

	content, err := os.ReadFile(filepath.Join(tempDir, "debug", files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if logEntry["model"] != "test-model" {
		t.Errorf("Expected model 'test-model', got %v", logEntry["model"])
	}
}

func TestDebugLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()
	client := &Client{
		chat:     &mockChatService{resp: completion("Test response")},
		model:    "test-model",
		stateDir: tempDir,
	}
	if _, err := client.Complete(context.Background(), nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}

func TestIsPlaceholderCredential(t *testing.T) {
	tests := map[string]bool{
		"":                    true,
		"   ":                 true,
		"PLACEHOLDER_API_KEY": true,
		"YOUR_API_KEY":        true,
		"sk-live-123":         false,
	}
	for key, want := range tests {
		if got := IsPlaceholderCredential(key); got != want {
			t.Errorf("IsPlaceholderCredential(%q) = %v, want %v", key, got, want)
		}
	}
}
