package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"

	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
)

// DefaultHistoryLimit is how many prior messages (not turns) a session keeps.
const DefaultHistoryLimit = 20

// DefaultSystemPrompt returns the built-in assistant persona for brand.
func DefaultSystemPrompt(brand chatbot.Brand) string {
	return fmt.Sprintf(`You are the friendly website assistant for %s, a software consultancy in Kenya.
You help visitors with questions about web development, mobile apps, AI solutions, pricing and the team's portfolio.
Prices are quoted in Kenyan shillings: starter websites from KES 35,000, business websites from KES 75,000, e-commerce from KES 120,000, mobile apps from KES 150,000, AI chatbot integration from KES 60,000.
Keep answers short (under 120 words). Use **bold** for key facts and "- " for list items. No other markdown.
When you cannot answer, suggest emailing %s or calling %s.`, brand.Name, brand.Email, brand.Phone)
}

// LoadSystemPrompt reads a system prompt from path.
func LoadSystemPrompt(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file is empty: %s", path)
	}
	slog.Info("genai.LoadSystemPrompt: system prompt loaded", "file", path, "length", len(prompt))
	return prompt, nil
}

// Message is one turn of a session's history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session is one visitor's conversation with the model.
type Session struct {
	client       *Client
	systemPrompt string
	historyLimit int // -1: no limit, 0: no history, positive: last N messages kept

	mu      sync.Mutex
	history []Message
}

// NewSession starts an empty conversation.
func (c *Client) NewSession(systemPrompt string, historyLimit int) *Session {
	return &Session{client: c, systemPrompt: systemPrompt, historyLimit: historyLimit}
}

// Send asks the model to answer text in the context of prior turns. History is
// only extended when the call succeeds with a non-empty answer.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	messages := s.buildMessages(text)
	s.mu.Unlock()

	answer, err := s.client.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", nil
	}

	s.mu.Lock()
	s.record(Message{Role: "user", Content: text}, Message{Role: "assistant", Content: answer})
	s.mu.Unlock()
	return answer, nil
}

// record appends msgs and drops the oldest entries beyond historyLimit.
func (s *Session) record(msgs ...Message) {
	if s.historyLimit == 0 {
		return
	}
	s.history = append(s.history, msgs...)
	if over := len(s.history) - s.historyLimit; s.historyLimit > 0 && over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// History returns a copy of the recorded turns.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

func (s *Session) buildMessages(text string) []openai.ChatCompletionMessageParamUnion {
	history := s.history
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if s.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(s.systemPrompt))
	}
	for _, m := range history {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return append(messages, openai.UserMessage(text))
}

// NewSessionFactory returns a chatbot.SessionFactory that opens sessions against
// the OpenAI API. Clients are reused while the credential stays the same.
func NewSessionFactory(systemPrompt string, historyLimit int, opts ...Option) chatbot.SessionFactory {
	var (
		mu         sync.Mutex
		client     *Client
		credential string
	)
	return func(key string) (chatbot.Session, error) {
		if IsPlaceholderCredential(key) {
			return nil, ErrNoCredential
		}
		mu.Lock()
		defer mu.Unlock()
		if client == nil || credential != key {
			c, err := NewClient(append(append([]Option(nil), opts...), WithAPIKey(key))...)
			if err != nil {
				return nil, err
			}
			client, credential = c, key
		}
		return client.NewSession(systemPrompt, historyLimit), nil
	}
}
