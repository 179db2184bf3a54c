package session

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the submit/reply phase of a session.
type State int

const (
	// StateIdle accepts a new user message.
	StateIdle State = iota

	// StateAwaitingReply rejects submissions until the pending reply lands.
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return "unknown"
	}
}

// DayGroup is a slice of the session log covering one local calendar day,
// used to render history with date separators.
type DayGroup struct {
	Day      time.Time
	Messages []Message
}

// Manager owns one session's message log and state machine. All methods are
// safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	key      string
	store    Store
	logger   *slog.Logger
	messages []Message
	state    State
	now      func() time.Time
}

// NewManager loads the session identified by key from the store, or seeds a
// fresh log when nothing is persisted or the persisted state cannot be read.
// A session always loads Idle; pending replies do not survive restarts.
func NewManager(key string, store Store, logger *slog.Logger) *Manager {
	m := &Manager{
		key:    key,
		store:  store,
		logger: logger,
		state:  StateIdle,
		now:    time.Now,
	}

	messages, err := store.Load(key)
	if err != nil {
		logger.Warn("failed to load session, starting fresh", "key", key, "error", err)
		messages = nil
	}
	if len(messages) == 0 {
		messages = []Message{welcomeMessage(m.now())}
		m.persistLocked(messages)
	}
	m.messages = messages
	return m
}

// Submit appends a user message and moves the session to AwaitingReply.
// Blank submissions and submissions while a reply is pending are rejected
// without touching the log.
func (m *Manager) Submit(content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAwaitingReply {
		return Message{}, ErrReplyPending
	}

	msg := Message{
		ID:        uuid.New(),
		Content:   content,
		IsUser:    true,
		Timestamp: m.now(),
	}
	m.messages = append(m.messages, msg)
	m.state = StateAwaitingReply
	m.persistLocked(m.messages)
	return msg, nil
}

// Resolve lands the pending reply and returns the session to Idle. The reply
// appends to whatever log is current, so a reply in flight across Clear
// lands on the fresh log.
func (m *Manager) Resolve(content string) (Message, error) {
	return m.appendReply(content)
}

// Fail lands a static apology in place of a reply that could not be
// generated and returns the session to Idle.
func (m *Manager) Fail() (Message, error) {
	return m.appendReply(ApologyText)
}

func (m *Manager) appendReply(content string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingReply {
		return Message{}, ErrNotAwaiting
	}

	msg := Message{
		ID:        uuid.New(),
		Content:   content,
		IsUser:    false,
		Timestamp: m.now(),
	}
	m.messages = append(m.messages, msg)
	m.state = StateIdle
	m.persistLocked(m.messages)
	return msg, nil
}

// Clear discards the log and reseeds the welcome message. The state machine
// is untouched: a reply already in flight still lands, appending to the
// fresh log. Clearing an already fresh session is a no-op apart from the
// seed timestamp.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = []Message{welcomeMessage(m.now())}
	m.persistLocked(m.messages)
}

// Messages returns a copy of the log in insertion order.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// IsAwaitingReply reports whether a submitted message is still waiting for
// its reply.
func (m *Manager) IsAwaitingReply() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAwaitingReply
}

// GroupedHistory returns the conversation grouped by local calendar day,
// oldest day first, messages in log order within each day. The welcome seed
// is chrome, not history, and is excluded.
func (m *Manager) GroupedHistory() []DayGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay := make(map[time.Time]*DayGroup)
	var days []time.Time
	for i, msg := range m.messages {
		if i == 0 && isWelcome(msg) {
			continue
		}
		local := msg.Timestamp.Local()
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
		group, ok := byDay[day]
		if !ok {
			group = &DayGroup{Day: day}
			byDay[day] = group
			days = append(days, day)
		}
		group.Messages = append(group.Messages, msg)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	out := make([]DayGroup, 0, len(days))
	for _, day := range days {
		out = append(out, *byDay[day])
	}
	return out
}

// persistLocked writes the full log through the store. Failures are logged
// and swallowed; the in-memory session stays authoritative for this process.
func (m *Manager) persistLocked(messages []Message) {
	if err := m.store.Save(m.key, messages); err != nil {
		m.logger.Error("failed to persist session", "key", m.key, "error", err)
	}
}
