package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
)

// scriptedBackend replies with the next entry in a fixed script,
// falling back to echoing the user turn once the script is exhausted.
type scriptedBackend struct {
	replies []string
	calls   int
}

func (b *scriptedBackend) next(messages domain.History) string {
	if b.calls < len(b.replies) {
		r := b.replies[b.calls]
		b.calls++
		return r
	}
	b.calls++
	return "answer:" + messages[len(messages)-1].Content
}

func (b *scriptedBackend) Complete(ctx context.Context, messages domain.History, temperature float64) (string, error) {
	return b.next(messages), nil
}

func (b *scriptedBackend) Stream(ctx context.Context, messages domain.History, temperature float64) (<-chan llmgateway.StreamEvent, error) {
	text := b.next(messages)
	ch := make(chan llmgateway.StreamEvent, len(text))
	for _, r := range text {
		ch <- llmgateway.StreamEvent{Token: string(r)}
	}
	close(ch)
	return ch, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeRetriever struct {
	result domain.RetrievalResult
	calls  int
}

func (f *fakeRetriever) GetRelevant(ctx context.Context, queryText string, queryVec []float32, datasets []string, k int) (domain.RetrievalResult, error) {
	f.calls++
	return f.result, nil
}

func snapshotFrom(t *testing.T, values map[string]string) *config.Snapshot {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/options.env"
	var sb strings.Builder
	for k, v := range values {
		fmt.Fprintf(&sb, "%s=%s\n", k, v)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	store, err := config.Open(path)
	require.NoError(t, err)
	return store.Current()
}

func oneDoc() domain.RetrievalResult {
	return domain.RetrievalResult{
		{Chunk: domain.Chunk{ID: "a", Text: "X is defined as the answer", Metadata: domain.Metadata{SourcePath: "a.txt"}}},
	}
}

func TestChatNoHistoryFetchesDocumentsAndAnswers(t *testing.T) {
	retriever := &fakeRetriever{result: oneDoc()}
	backend := &scriptedBackend{}
	gateway := llmgateway.New(backend, 0)
	snap := snapshotFrom(t, map[string]string{"top_k": "5"})

	o := New(snap, fakeEmbedder{}, retriever, nil, gateway, nil)
	result, err := o.Chat(context.Background(), ChatRequest{Prompt: "What is X?"})
	require.NoError(t, err)

	require.True(t, result.FetchedNewDocuments)
	require.Nil(t, result.Rewritten)
	require.Len(t, result.Documents, 1)
	require.Equal(t, 3, len(result.History))
	require.Equal(t, domain.RoleSystem, result.History[0].Role)
	require.Equal(t, domain.RoleUser, result.History[1].Role)
	require.Equal(t, domain.RoleAssistant, result.History[2].Role)
	require.Equal(t, 1, retriever.calls)
}

func TestChatRefetchSuppressionEchoesRequestDocs(t *testing.T) {
	retriever := &fakeRetriever{result: oneDoc()}
	backend := &scriptedBackend{replies: []string{"no, the history covers it"}}
	gateway := llmgateway.New(backend, 0)
	snap := snapshotFrom(t, map[string]string{"top_k": "5"})

	echoed := domain.RetrievalResult{{Chunk: domain.Chunk{ID: "echo", Text: "echoed doc"}}}
	o := New(snap, fakeEmbedder{}, retriever, nil, gateway, nil)
	result, err := o.Chat(context.Background(), ChatRequest{
		Prompt:  "Follow up",
		History: domain.History{{Role: domain.RoleUser, Content: "hi"}, {Role: domain.RoleAssistant, Content: "hello"}},
		Docs:    echoed,
	})
	require.NoError(t, err)

	require.False(t, result.FetchedNewDocuments)
	require.Equal(t, echoed, result.Documents)
	require.Equal(t, 0, retriever.calls)
}

func TestChatRewriteLoopFiresAtMostOnce(t *testing.T) {
	retriever := &fakeRetriever{result: oneDoc()}
	backend := &scriptedBackend{replies: []string{"no, missing X"}}
	gateway := llmgateway.New(backend, 0)
	snap := snapshotFrom(t, map[string]string{"top_k": "5", "use_rewrite_loop": "true"})

	o := New(snap, fakeEmbedder{}, retriever, nil, gateway, nil)
	result, err := o.Chat(context.Background(), ChatRequest{Prompt: "What is X?"})
	require.NoError(t, err)

	require.NotNil(t, result.Rewritten)
	require.Equal(t, 2, retriever.calls)
}

func TestChatStreamTokensConcatenateToReply(t *testing.T) {
	retriever := &fakeRetriever{result: oneDoc()}
	backend := &scriptedBackend{}
	gateway := llmgateway.New(backend, 0)
	snap := snapshotFrom(t, map[string]string{"top_k": "5"})

	o := New(snap, fakeEmbedder{}, retriever, nil, gateway, nil)

	var events []Event
	result, err := o.ChatStream(context.Background(), ChatRequest{Prompt: "What is X?"}, func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	var tokens strings.Builder
	sawDocuments := false
	for _, e := range events {
		if e.Kind == EventDocuments {
			sawDocuments = true
		}
		if e.Kind == EventToken {
			require.True(t, sawDocuments, "token emitted before documents event")
			tokens.WriteString(e.Token)
		}
	}
	require.True(t, sawDocuments)
	require.Equal(t, result.Reply, tokens.String())
}

func TestHydeAndRewriteLoopAreMutuallyExclusive(t *testing.T) {
	retriever := &fakeRetriever{result: oneDoc()}
	backend := &scriptedBackend{replies: []string{"a hypothetical answer about X"}}
	gateway := llmgateway.New(backend, 0)
	snap := snapshotFrom(t, map[string]string{"top_k": "5", "use_hyde": "true", "use_rewrite_loop": "true"})

	o := New(snap, fakeEmbedder{}, retriever, nil, gateway, nil)
	result, err := o.Chat(context.Background(), ChatRequest{Prompt: "What is X?"})
	require.NoError(t, err)

	require.Nil(t, result.Rewritten)
	require.Equal(t, 1, retriever.calls)
}
