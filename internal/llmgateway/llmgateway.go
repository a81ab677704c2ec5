// Package llmgateway implements LLMGateway (spec.md §4.3): a neutral
// {system, user, assistant} message model driving a selectable backend,
// with respond/respond_stream construction shared across backends.
package llmgateway

import (
	"context"
	"strings"

	"github.com/ragcorpus/ragd/internal/apperr"
	"github.com/ragcorpus/ragd/internal/domain"
)

// Backend maps the neutral message model to one provider's native
// form. The gateway passes the full message list, system turn included;
// backends requiring a separate system field lift it out themselves
// with liftSystem.
type Backend interface {
	// Complete returns the full assistant reply for messages.
	Complete(ctx context.Context, messages domain.History, temperature float64) (string, error)
	// Stream returns a channel of text fragments whose concatenation
	// equals what Complete would have returned. The channel is closed
	// on completion, cancellation, or error.
	Stream(ctx context.Context, messages domain.History, temperature float64) (<-chan StreamEvent, error)
}

// StreamEvent is one fragment of a streamed reply, or a terminal error.
type StreamEvent struct {
	Token string
	Err   error
}

// Gateway is the LLMGateway: a fixed backend plus the temperature
// configuration value applied uniformly to every call (spec.md §4.3).
type Gateway struct {
	backend     Backend
	temperature float64
}

func New(backend Backend, temperature float64) *Gateway {
	return &Gateway{backend: backend, temperature: temperature}
}

// build inserts or overwrites the system turn per the History invariant
// (spec.md §3, §4.5) and appends the user prompt.
func build(systemPrompt *string, userPrompt string, history domain.History) domain.History {
	msgs := history
	if systemPrompt != nil {
		msgs = msgs.WithSystem(*systemPrompt)
	}
	return msgs.Append(domain.Turn{Role: domain.RoleUser, Content: userPrompt})
}

// Respond builds the message list and invokes the backend once,
// returning the assistant text and the effective history sent (without
// the assistant reply appended — callers append it themselves).
func (g *Gateway) Respond(ctx context.Context, systemPrompt *string, userPrompt string, history domain.History) (string, domain.History, error) {
	msgs := build(systemPrompt, userPrompt, history)
	text, err := g.backend.Complete(ctx, msgs, g.temperature)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindLLMFailed, "llm completion failed", err)
	}
	return CleanReply(text), msgs, nil
}

// RespondStream builds the message list and invokes the backend in
// streaming mode, returning the chunk channel and the effective
// history sent.
func (g *Gateway) RespondStream(ctx context.Context, systemPrompt *string, userPrompt string, history domain.History) (<-chan StreamEvent, domain.History, error) {
	msgs := build(systemPrompt, userPrompt, history)
	ch, err := g.backend.Stream(ctx, msgs, g.temperature)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindLLMFailed, "llm stream failed", err)
	}
	return ch, msgs, nil
}

// CleanReply strips a leading/trailing fenced code-block wrapper when
// and only when both fences are present on their own lines (spec.md
// §4.3).
func CleanReply(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	first := strings.TrimSpace(lines[0])
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(first, "```") || last != "```" {
		return text
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// liftSystem splits history into (systemContent, rest) for backends
// whose native API takes a dedicated system field.
func liftSystem(history domain.History) (string, domain.History) {
	if sys, ok := history.SystemTurn(); ok {
		return sys.Content, history[1:]
	}
	return "", history
}
