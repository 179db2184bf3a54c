package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lumencrm/lumen/internal/knowledge"
	"github.com/lumencrm/lumen/internal/session"
)

// Retriever supplies grounding passages for a query. Satisfied by
// *knowledge.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.Passage, error)
}

// Assistant orchestrates one session's conversation loop: accept a message,
// retrieve context, generate a reply, and land it on the session log. Reply
// work runs in a background goroutine per message so Submit returns as soon
// as the user message is accepted.
type Assistant struct {
	manager   *session.Manager
	retriever Retriever
	assembler *Assembler
	generator Generator
	topK      int
	logger    *slog.Logger

	onReply func(session.Message)

	bgCtx  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// AssistantConfig configures an Assistant.
type AssistantConfig struct {
	Manager   *session.Manager
	Retriever Retriever
	Assembler *Assembler
	Generator Generator
	TopK      int // passages per query, 0 means knowledge.DefaultTopK
	Logger    *slog.Logger

	// OnReply is called after each assistant message lands on the log,
	// including apologies. Called from the reply goroutine.
	OnReply func(session.Message)
}

// NewAssistant creates an Assistant. Close must be called to drain in-flight
// replies.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.Manager == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("assembler is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	return &Assistant{
		manager:   cfg.Manager,
		retriever: cfg.Retriever,
		assembler: cfg.Assembler,
		generator: cfg.Generator,
		topK:      topK,
		logger:    cfg.Logger,
		onReply:   cfg.OnReply,
		bgCtx:     bgCtx,
		cancel:    cancel,
	}, nil
}

// Submit accepts a user message and schedules its reply. Returns the
// accepted message immediately; the reply lands asynchronously via the
// session manager and the OnReply hook. Session rejections (blank message,
// reply already pending) pass through unchanged.
func (a *Assistant) Submit(content string) (session.Message, error) {
	msg, err := a.manager.Submit(content)
	if err != nil {
		return session.Message{}, err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reply(msg.Content)
	}()
	return msg, nil
}

// SubmitAndWait accepts a user message and blocks until its reply lands,
// returning the reply. Used by synchronous callers like the CLI loop.
func (a *Assistant) SubmitAndWait(content string) (session.Message, error) {
	msg, err := a.manager.Submit(content)
	if err != nil {
		return session.Message{}, err
	}
	landed, ok := a.reply(msg.Content)
	if !ok {
		return session.Message{}, errors.New("reply did not land")
	}
	return landed, nil
}

// reply runs the retrieve-assemble-generate pipeline and lands the result.
// Any failure lands the static apology instead; the session never sticks in
// the awaiting state.
func (a *Assistant) reply(query string) (session.Message, bool) {
	passages, err := a.retriever.Retrieve(a.bgCtx, query, a.topK)
	if err != nil {
		// Retrieval is best-effort; treat a hard failure like no context.
		a.logger.Warn("retrieval failed", "error", err)
		passages = nil
	}

	prompt := a.assembler.Assemble(query, passages)

	text, err := a.generator.Generate(a.bgCtx, prompt)
	var landed session.Message
	var landErr error
	if err != nil {
		a.logger.Error("reply generation failed", "error", err)
		landed, landErr = a.manager.Fail()
	} else {
		landed, landErr = a.manager.Resolve(text)
	}
	if landErr != nil {
		a.logger.Error("failed to land reply", "error", landErr)
		return session.Message{}, false
	}
	if a.onReply != nil {
		a.onReply(landed)
	}
	return landed, true
}

// Session exposes the underlying session manager for log access.
func (a *Assistant) Session() *session.Manager {
	return a.manager
}

// ClearHistory discards the visible conversation. A reply in flight still
// lands, on the fresh log.
func (a *Assistant) ClearHistory() {
	a.manager.Clear()
}

// Close cancels background work and waits for in-flight replies to land.
func (a *Assistant) Close() {
	a.cancel()
	a.wg.Wait()
}
