package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumencrm/lumen/internal/log"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// memStore implements Store in memory for testing
type memStore struct {
	mu        sync.Mutex
	data      map[string][]Message
	loadErr   error
	saveErr   error
	saveCount int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]Message)}
}

func (s *memStore) Load(key string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data[key], nil
}

func (s *memStore) Save(key string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	if s.saveErr != nil {
		return s.saveErr
	}
	stored := make([]Message, len(messages))
	copy(stored, messages)
	s.data[key] = stored
	return nil
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	return NewManager("test-session", store, log.NewNop())
}

// ============================================================================
// State Machine Tests
// ============================================================================

func TestManager_NewSeedsWelcome(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	msgs := m.Messages()
	if len(msgs) != 1 {
		t.Fatalf("fresh session has %d messages, want 1", len(msgs))
	}
	if msgs[0].IsUser {
		t.Error("welcome seed should be an assistant message")
	}
	if msgs[0].Content != WelcomeText {
		t.Errorf("seed content = %q", msgs[0].Content)
	}
	if m.IsAwaitingReply() {
		t.Error("fresh session should be idle")
	}
	if store.saveCount == 0 {
		t.Error("seeded log should be persisted")
	}
}

func TestManager_SubmitAppendsAndAwaits(t *testing.T) {
	m := newTestManager(t, newMemStore())

	msg, err := m.Submit("What is our refund policy?")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !msg.IsUser {
		t.Error("submitted message should be a user message")
	}
	if msg.Content != "What is our refund policy?" {
		t.Errorf("content = %q", msg.Content)
	}
	if !m.IsAwaitingReply() {
		t.Error("session should await a reply after Submit")
	}
	if got := len(m.Messages()); got != 2 {
		t.Errorf("log has %d messages, want 2", got)
	}
}

func TestManager_SubmitTrimsAndRejectsBlank(t *testing.T) {
	m := newTestManager(t, newMemStore())

	for _, content := range []string{"", "   ", "\n\t "} {
		if _, err := m.Submit(content); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Submit(%q) error = %v, want ErrEmptyMessage", content, err)
		}
	}
	if len(m.Messages()) != 1 {
		t.Error("rejected submissions must not touch the log")
	}

	msg, err := m.Submit("  hello  ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q, want trimmed", msg.Content)
	}
}

func TestManager_SubmitWhilePendingRejected(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if _, err := m.Submit("first"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := m.Submit("second"); !errors.Is(err, ErrReplyPending) {
		t.Fatalf("second Submit error = %v, want ErrReplyPending", err)
	}
	if got := len(m.Messages()); got != 2 {
		t.Errorf("log has %d messages, want 2", got)
	}
}

func TestManager_ResolveLandsReply(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if _, err := m.Submit("question"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	reply, err := m.Resolve("answer")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if reply.IsUser {
		t.Error("reply should be an assistant message")
	}
	if m.IsAwaitingReply() {
		t.Error("session should be idle after Resolve")
	}

	msgs := m.Messages()
	if len(msgs) != 3 {
		t.Fatalf("log has %d messages, want 3", len(msgs))
	}
	if msgs[2].Content != "answer" {
		t.Errorf("last message = %q", msgs[2].Content)
	}
}

func TestManager_FailLandsApology(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if _, err := m.Submit("question"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	apology, err := m.Fail()
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if apology.Content != ApologyText {
		t.Errorf("apology = %q", apology.Content)
	}
	if m.IsAwaitingReply() {
		t.Error("session should be idle after Fail")
	}

	if _, err := m.Submit("try again"); err != nil {
		t.Errorf("session should accept a new message after Fail: %v", err)
	}
}

func TestManager_ResolveWithoutPending(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if _, err := m.Resolve("orphan"); !errors.Is(err, ErrNotAwaiting) {
		t.Errorf("Resolve error = %v, want ErrNotAwaiting", err)
	}
	if _, err := m.Fail(); !errors.Is(err, ErrNotAwaiting) {
		t.Errorf("Fail error = %v, want ErrNotAwaiting", err)
	}
}

// ============================================================================
// Clear Tests
// ============================================================================

func TestManager_ClearReseeds(t *testing.T) {
	m := newTestManager(t, newMemStore())

	m.Submit("question")
	m.Resolve("answer")
	m.Clear()

	msgs := m.Messages()
	if len(msgs) != 1 {
		t.Fatalf("cleared log has %d messages, want 1", len(msgs))
	}
	if msgs[0].Content != WelcomeText {
		t.Errorf("cleared log should start with the welcome seed, got %q", msgs[0].Content)
	}

	// Clearing again is harmless.
	m.Clear()
	if got := len(m.Messages()); got != 1 {
		t.Errorf("double clear left %d messages, want 1", got)
	}
}

func TestManager_ClearDuringPending_ReplyLandsOnFreshLog(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if _, err := m.Submit("question"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	m.Clear()

	if !m.IsAwaitingReply() {
		t.Fatal("clear must not cancel the pending reply")
	}

	if _, err := m.Resolve("late answer"); err != nil {
		t.Fatalf("Resolve after clear failed: %v", err)
	}
	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("log has %d messages, want welcome + reply", len(msgs))
	}
	if msgs[1].Content != "late answer" {
		t.Errorf("reply = %q", msgs[1].Content)
	}
	if m.IsAwaitingReply() {
		t.Error("session should be idle after the late reply lands")
	}
}

// ============================================================================
// Log Access Tests
// ============================================================================

func TestManager_MessagesReturnsCopy(t *testing.T) {
	m := newTestManager(t, newMemStore())
	m.Submit("question")

	msgs := m.Messages()
	msgs[0].Content = "tampered"

	if m.Messages()[0].Content == "tampered" {
		t.Error("Messages must return a defensive copy")
	}
}

func TestManager_GroupedHistory(t *testing.T) {
	m := newTestManager(t, newMemStore())

	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.Local)
	m.now = func() time.Time { return clock }

	m.Submit("day one question")
	m.Resolve("day one answer")

	clock = time.Date(2026, 1, 2, 11, 0, 0, 0, time.Local)
	m.Submit("day two question")
	m.Resolve("day two answer")

	groups := m.GroupedHistory()
	if len(groups) != 2 {
		t.Fatalf("got %d day groups, want 2", len(groups))
	}
	if !groups[0].Day.Before(groups[1].Day) {
		t.Error("groups should be ordered oldest day first")
	}
	if len(groups[0].Messages) != 2 || len(groups[1].Messages) != 2 {
		t.Errorf("group sizes = %d, %d, want 2, 2",
			len(groups[0].Messages), len(groups[1].Messages))
	}
	for _, g := range groups {
		for _, msg := range g.Messages {
			if msg.Content == WelcomeText {
				t.Error("welcome seed must not appear in history")
			}
		}
	}
	if groups[0].Messages[0].Content != "day one question" {
		t.Errorf("first message = %q", groups[0].Messages[0].Content)
	}
}

func TestManager_GroupedHistory_FreshSession(t *testing.T) {
	m := newTestManager(t, newMemStore())

	if groups := m.GroupedHistory(); len(groups) != 0 {
		t.Errorf("fresh session history has %d groups, want 0", len(groups))
	}
}

// ============================================================================
// Persistence Tests
// ============================================================================

func TestManager_PersistsEveryMutation(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	before := store.saveCount
	m.Submit("question")
	m.Resolve("answer")
	m.Clear()

	if got := store.saveCount - before; got != 3 {
		t.Errorf("saved %d times, want 3", got)
	}
	stored := store.data["test-session"]
	if len(stored) != 1 || stored[0].Content != WelcomeText {
		t.Error("store should hold the full current log after each mutation")
	}
}

func TestManager_ReloadsPersistedLog(t *testing.T) {
	store := newMemStore()
	first := newTestManager(t, store)
	first.Submit("question")
	first.Resolve("answer")

	second := newTestManager(t, store)
	msgs := second.Messages()
	if len(msgs) != 3 {
		t.Fatalf("reloaded log has %d messages, want 3", len(msgs))
	}
	if second.IsAwaitingReply() {
		t.Error("reloaded session should start idle")
	}
}

func TestManager_CorruptStoreStartsFresh(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("unexpected end of JSON input")

	m := newTestManager(t, store)
	msgs := m.Messages()
	if len(msgs) != 1 || msgs[0].Content != WelcomeText {
		t.Error("unreadable persisted state should yield a fresh seeded log")
	}
}

func TestManager_SaveFailureKeepsWorking(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")

	m := newTestManager(t, store)
	if _, err := m.Submit("question"); err != nil {
		t.Fatalf("Submit should succeed despite persistence failure: %v", err)
	}
	if _, err := m.Resolve("answer"); err != nil {
		t.Fatalf("Resolve should succeed despite persistence failure: %v", err)
	}
	if got := len(m.Messages()); got != 3 {
		t.Errorf("in-memory log has %d messages, want 3", got)
	}
}
