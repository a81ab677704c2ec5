// Package domain holds the shared value types that flow between the
// retriever, orchestrator, and streaming layers: Chunk, RetrievalResult,
// conversation history, and per-request pipeline state (spec.md §3).
package domain

import "strings"

// Role identifies who produced a conversation Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an ordered sequence of Turns. Invariant: at most one
// system turn, and if present it is at index 0.
type History []Turn

// SystemTurn returns the system turn and true if History[0] is one.
func (h History) SystemTurn() (Turn, bool) {
	if len(h) > 0 && h[0].Role == RoleSystem {
		return h[0], true
	}
	return Turn{}, false
}

// WithSystem returns a copy of h with its system turn set to content,
// injecting one at index 0 if none is present (unless content is empty,
// in which case nothing is injected), or overwriting index 0 if one
// already is. Per spec.md §4.5, this rewrite only ever
// affects the current turn's copy, never the caller's slice.
func (h History) WithSystem(content string) History {
	out := make(History, 0, len(h)+1)
	if _, ok := h.SystemTurn(); ok {
		out = append(out, Turn{Role: RoleSystem, Content: content})
		out = append(out, h[1:]...)
		return out
	}
	if content == "" {
		return append(out, h...)
	}
	out = append(out, Turn{Role: RoleSystem, Content: content})
	out = append(out, h...)
	return out
}

// WithoutSystem returns a copy of h with any system turn at index 0
// removed.
func (h History) WithoutSystem() History {
	if _, ok := h.SystemTurn(); ok {
		out := make(History, len(h)-1)
		copy(out, h[1:])
		return out
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Append returns a copy of h with turn appended.
func (h History) Append(turn Turn) History {
	out := make(History, len(h)+1)
	copy(out, h)
	out[len(h)] = turn
	return out
}

// Chunk is the atomic retrievable unit (spec.md §3). Its ID is a pure
// function of Text; identical text always produces the identical ID.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata carries the minimum required fields plus any extras an
// ingest strategy chooses to attach; the store column is a schemaless
// JSON blob (spec.md §6) so arbitrary keys round-trip.
type Metadata struct {
	SourcePath string            `json:"source_path"`
	Dataset    string            `json:"dataset"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// ScoredChunk augments a Chunk with retrieval and (optionally) rerank
// and provenance scores.
type ScoredChunk struct {
	Chunk
	FusedScore  float64  `json:"-"`
	Distance    float64  `json:"distance"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
	Provenance  *float64 `json:"provenance,omitempty"`
}

// RetrievalResult is an ordered sequence of ScoredChunks (spec.md §3).
// Before reranking the order is fused-score descending; after
// reranking it is rerank-score descending.
type RetrievalResult []ScoredChunk

// SourcePaths returns the distinct source_path values across r, in
// first-seen order.
func (r RetrievalResult) SourcePaths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r {
		if seen[c.Metadata.SourcePath] {
			continue
		}
		seen[c.Metadata.SourcePath] = true
		out = append(out, c.Metadata.SourcePath)
	}
	return out
}

// PipelineState is the ephemeral per-request working state the
// orchestrator threads through its state machine (spec.md §3).
type PipelineState struct {
	WorkingPrompt      string
	OriginalPrompt     string
	Documents          RetrievalResult
	RewrittenQuery     *string
	FetchedNewDocuments bool
	Provenance         map[string]float64
}

// YesNo interprets an LLM yes/no reply per spec.md §4.5: matched by
// lowercase-stripped prefix "no"; anything else means yes.
func YesNo(reply string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(reply))
	return !strings.HasPrefix(trimmed, "no")
}
