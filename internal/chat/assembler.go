// Package chat turns user messages into grounded assistant replies. The
// Assembler builds the model prompt from retrieved passages under a size
// budget, the Generator calls the model, and the Assistant wires both to a
// session's state machine so replies land asynchronously.
package chat

import (
	"strings"

	"github.com/lumencrm/lumen/internal/knowledge"
)

// DefaultSystemPrompt instructs the model to answer from the supplied
// passages and admit when they do not cover the question.
const DefaultSystemPrompt = `You are a CRM assistant. Answer the user's question using the context passages below when they are relevant. If the context does not cover the question, say so instead of guessing. Be concise.`

// passageDelimiter separates context passages in the assembled prompt.
const passageDelimiter = "\n---\n"

// Prompt is an assembled model request.
type Prompt struct {
	System string
	Text   string
}

// Assembler builds prompts from retrieved passages under a character budget.
// The budget bounds the whole prompt; when passages do not fit, the
// lowest-ranked are dropped whole. The system instruction and the user's
// question are never truncated.
type Assembler struct {
	systemPrompt string
	maxChars     int
}

// NewAssembler returns an Assembler with the given character budget. A
// non-positive budget disables trimming. An empty system prompt falls back
// to DefaultSystemPrompt.
func NewAssembler(systemPrompt string, maxChars int) *Assembler {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Assembler{systemPrompt: systemPrompt, maxChars: maxChars}
}

// Assemble builds the prompt for query grounded on passages, which must
// already be ranked best first. Passages that would blow the budget are
// dropped from the bottom of the ranking.
func (a *Assembler) Assemble(query string, passages []knowledge.Passage) Prompt {
	var blocks []string
	for _, p := range passages {
		blocks = append(blocks, formatPassage(p))
	}

	if a.maxChars > 0 {
		fixed := len(a.systemPrompt) + len(a.scaffolding(query))
		budget := a.maxChars - fixed
		blocks = trimBlocks(blocks, budget)
	}

	return Prompt{
		System: a.systemPrompt,
		Text:   a.render(query, blocks),
	}
}

func formatPassage(p knowledge.Passage) string {
	return "Title: " + p.Title + "\nContent: " + p.Content
}

// render joins the context blocks and the question into the final prompt
// text. With no blocks the prompt is just the question.
func (a *Assembler) render(query string, blocks []string) string {
	if len(blocks) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(blocks, passageDelimiter))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// scaffolding is the rendered prompt minus the passage blocks, used to size
// the fixed part of the budget.
func (a *Assembler) scaffolding(query string) string {
	return "Context:\n\n\nQuestion: " + query
}

// trimBlocks keeps the longest prefix of blocks whose joined length fits the
// budget. Blocks are dropped whole, never cut mid-passage.
func trimBlocks(blocks []string, budget int) []string {
	total := 0
	for i, block := range blocks {
		cost := len(block)
		if i > 0 {
			cost += len(passageDelimiter)
		}
		if total+cost > budget {
			return blocks[:i]
		}
		total += cost
	}
	return blocks
}
