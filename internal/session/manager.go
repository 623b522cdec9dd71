// Package session tracks live conversations across the web, websocket and WhatsApp channels.
//
// Each conversation owns its AI session and connectivity state. Resolution is
// serialised per conversation, so a second utterance waits for the first reply and
// never observes a half-updated state. Both turns are recorded in the transcript store.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/store"
)

// DefaultTTL is how long an idle conversation is kept before the sweeper drops it.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned for unknown or expired conversation IDs.
var ErrNotFound = errors.New("conversation not found")

// Option configures a Manager.
type Option func(*Manager)

// WithStore records transcripts in s. Defaults to an in-memory store.
func WithStore(s store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithTTL sets the idle expiry. Zero or less keeps conversations until closed.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithCredential sets the credential handed to the session factory.
func WithCredential(credential string) Option {
	return func(m *Manager) { m.credential = credential }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type conversation struct {
	// turn serialises resolution for this conversation.
	turn sync.Mutex

	id        string
	channel   models.Channel
	ai        chatbot.Session
	createdAt time.Time

	mu           sync.Mutex
	state        models.ConnectivityState
	lastActiveAt time.Time
}

func (c *conversation) info() models.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.SessionInfo{
		ID:           c.id,
		Channel:      c.channel,
		State:        c.state,
		CreatedAt:    c.createdAt,
		LastActiveAt: c.lastActiveAt,
	}
}

// Manager owns every live conversation.
type Manager struct {
	resolver   *chatbot.Resolver
	factory    chatbot.SessionFactory
	credential string
	store      store.Store
	ttl        time.Duration
	now        func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewManager creates a Manager. A nil factory puts every conversation in fallback mode.
func NewManager(resolver *chatbot.Resolver, factory chatbot.SessionFactory, opts ...Option) *Manager {
	m := &Manager{
		resolver:      resolver,
		factory:       factory,
		ttl:           DefaultTTL,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = store.NewInMemoryStore()
	}
	slog.Debug("Manager.NewManager: created", "ttl", m.ttl, "ai_configured", factory != nil)
	return m
}

// Store returns the transcript store.
func (m *Manager) Store() store.Store {
	return m.store
}

// Open starts a new conversation with a generated ID.
func (m *Manager) Open(channel models.Channel) models.SessionInfo {
	c := m.open(uuid.NewString(), channel)
	m.mu.Lock()
	m.conversations[c.id] = c
	m.mu.Unlock()
	return c.info()
}

// GetOrOpen returns the conversation with id, starting it if needed. Channels keyed
// by an external identity, such as a WhatsApp number, use this instead of Open.
func (m *Manager) GetOrOpen(id string, channel models.Channel) models.SessionInfo {
	m.mu.Lock()
	if c, ok := m.conversations[id]; ok {
		m.mu.Unlock()
		return c.info()
	}
	m.mu.Unlock()

	c := m.open(id, channel)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have opened it while the factory ran.
	if existing, ok := m.conversations[id]; ok {
		return existing.info()
	}
	m.conversations[id] = c
	return c.info()
}

// open runs Initialize outside the manager lock since the factory may be slow.
func (m *Manager) open(id string, channel models.Channel) *conversation {
	ai, state := chatbot.Initialize(m.credential, m.factory)
	now := m.now()
	slog.Info("Manager.Open: conversation started", "id", id, "channel", channel, "state", state)
	return &conversation{
		id:           id,
		channel:      channel,
		ai:           ai,
		createdAt:    now,
		state:        state,
		lastActiveAt: now,
	}
}

// Get returns the conversation summary for id.
func (m *Manager) Get(id string) (models.SessionInfo, error) {
	c, err := m.lookup(id)
	if err != nil {
		return models.SessionInfo{}, err
	}
	return c.info(), nil
}

// List returns every live conversation, oldest first.
func (m *Manager) List() []models.SessionInfo {
	m.mu.Lock()
	convs := make([]*conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		convs = append(convs, c)
	}
	m.mu.Unlock()

	infos := make([]models.SessionInfo, 0, len(convs))
	for _, c := range convs {
		infos = append(infos, c.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Send resolves utterance within conversation id and records both turns.
func (m *Manager) Send(ctx context.Context, id, utterance string) (chatbot.Reply, models.SessionInfo, error) {
	c, err := m.lookup(id)
	if err != nil {
		return chatbot.Reply{}, models.SessionInfo{}, err
	}

	// Mark the conversation busy before queueing so the sweeper leaves it alone.
	c.mu.Lock()
	c.lastActiveAt = m.now()
	c.mu.Unlock()

	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	reply, next, err := m.resolver.Resolve(ctx, utterance, state, c.ai)
	if err != nil {
		return chatbot.Reply{}, c.info(), err
	}

	now := m.now()
	c.mu.Lock()
	c.state = next
	c.lastActiveAt = now
	c.mu.Unlock()

	if state != next {
		slog.Info("Manager.Send: connectivity changed", "id", id, "from", state, "to", next, "failure", reply.Failure)
	}

	m.record(models.ChatMessage{
		SessionID: id, Channel: c.channel, Role: models.RoleUser,
		Body: utterance, State: next, Time: now.Unix(),
	})
	m.record(models.ChatMessage{
		SessionID: id, Channel: c.channel, Role: models.RoleAssistant,
		Body: reply.Text, Source: reply.Source, Rule: reply.Rule, State: next, Time: now.Unix(),
	})
	return reply, c.info(), nil
}

// record persists a transcript entry. Failures never affect the reply.
func (m *Manager) record(msg models.ChatMessage) {
	if err := m.store.AddMessage(msg); err != nil {
		slog.Error("Manager.record: failed to store message", "error", err, "id", msg.SessionID, "role", msg.Role)
	}
}

// Close ends conversation id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	slog.Info("Manager.Close: conversation closed", "id", id)
	return nil
}

// Sweep drops conversations idle for longer than the TTL and returns how many.
// A conversation with a reply in flight is never idle.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, c := range m.conversations {
		if !c.turn.TryLock() {
			continue
		}
		if c.info().LastActiveAt.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
		c.turn.Unlock()
	}
	if removed > 0 {
		slog.Info("Manager.Sweep: expired idle conversations", "removed", removed, "remaining", len(m.conversations))
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		slog.Debug("Manager.StartSweeper: expiry disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("Manager.StartSweeper: stopped")
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

func (m *Manager) lookup(id string) (*conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}
