// Package session manages a persisted chat session: an ordered message log,
// a submit/reply state machine, and pluggable persistence backends.
//
// A session is always in one of two states. Idle accepts a new user message;
// AwaitingReply means a user message has been accepted and its reply has not
// arrived yet, so further submissions are rejected until Resolve or Fail
// lands the reply. Every mutation writes the full message list through the
// configured Store; persistence failures degrade to in-memory operation
// rather than losing the conversation.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// WelcomeText seeds every new or cleared session so the chat never opens on
// an empty screen. It is presentation chrome, not conversation history.
const WelcomeText = "Hi! I'm your CRM assistant. Ask me about your accounts, contacts, or anything in your knowledge base."

// ApologyText is the assistant message appended when reply generation fails.
const ApologyText = "Sorry, I wasn't able to answer that. Please try again in a moment."

// Sentinel errors for session operations. Check with errors.Is().
var (
	// ErrEmptyMessage indicates a submission that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrReplyPending indicates a submission while a previous message is
	// still awaiting its reply.
	ErrReplyPending = errors.New("previous message still awaiting reply")

	// ErrNotAwaiting indicates Resolve or Fail without a pending message.
	ErrNotAwaiting = errors.New("no message awaiting reply")
)

// Message is a single entry in the session log.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// welcomeMessage builds the seed entry for a fresh log.
func welcomeMessage(now time.Time) Message {
	return Message{
		ID:        uuid.New(),
		Content:   WelcomeText,
		IsUser:    false,
		Timestamp: now,
	}
}

// isWelcome reports whether a message is the presentation seed. Only the
// first log entry can be the seed; user messages never are.
func isWelcome(m Message) bool {
	return !m.IsUser && m.Content == WelcomeText
}
