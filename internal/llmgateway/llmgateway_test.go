package llmgateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/domain"
)

type fakeBackend struct {
	reply  string
	tokens []string
	seen   domain.History
}

func (f *fakeBackend) Complete(ctx context.Context, messages domain.History, temperature float64) (string, error) {
	f.seen = messages
	return f.reply, nil
}

func (f *fakeBackend) Stream(ctx context.Context, messages domain.History, temperature float64) (<-chan StreamEvent, error) {
	f.seen = messages
	ch := make(chan StreamEvent, len(f.tokens))
	for _, tok := range f.tokens {
		ch <- StreamEvent{Token: tok}
	}
	close(ch)
	return ch, nil
}

func TestRespondInjectsSystemAtIndexZero(t *testing.T) {
	backend := &fakeBackend{reply: "hi there"}
	gw := New(backend, 0)

	sys := "be helpful"
	_, history, err := gw.Respond(context.Background(), &sys, "hello", nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.RoleSystem, history[0].Role)
	require.Equal(t, sys, history[0].Content)
	require.Equal(t, domain.RoleUser, history[1].Role)
}

func TestRespondOverwritesExistingSystemTurn(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	gw := New(backend, 0)

	existing := domain.History{
		{Role: domain.RoleSystem, Content: "old instructions"},
		{Role: domain.RoleUser, Content: "previous question"},
		{Role: domain.RoleAssistant, Content: "previous answer"},
	}

	sys := "new instructions"
	_, history, err := gw.Respond(context.Background(), &sys, "next question", existing)
	require.NoError(t, err)
	require.Equal(t, 1, countSystemTurns(history))
	require.Equal(t, sys, history[0].Content)
	require.Equal(t, domain.RoleSystem, history[0].Role)
}

func countSystemTurns(h domain.History) int {
	n := 0
	for _, t := range h {
		if t.Role == domain.RoleSystem {
			n++
		}
	}
	return n
}

func TestRespondStreamConcatenationEqualsRespond(t *testing.T) {
	tokens := []string{"Hel", "lo ", "wor", "ld"}
	streamBackend := &fakeBackend{tokens: tokens}
	completeBackend := &fakeBackend{reply: "Hello world"}

	streamGw := New(streamBackend, 0)
	completeGw := New(completeBackend, 0)

	ch, _, err := streamGw.RespondStream(context.Background(), nil, "hi", nil)
	require.NoError(t, err)

	var got string
	for ev := range ch {
		require.NoError(t, ev.Err)
		got += ev.Token
	}

	want, _, err := completeGw.Respond(context.Background(), nil, "hi", nil)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCleanReplyStripsMatchedFences(t *testing.T) {
	require.Equal(t, "hello", CleanReply("```\nhello\n```"))
}

func TestCleanReplyLeavesUnmatchedFences(t *testing.T) {
	in := "```go\ncode without closing fence"
	require.Equal(t, in, CleanReply(in))
}

func TestCleanReplyLeavesPlainText(t *testing.T) {
	require.Equal(t, "plain text", CleanReply("plain text"))
}
