// Package orchestrator implements PipelineOrchestrator (spec.md §4.5):
// the stateful per-request query workflow that summarizes history,
// decides whether to refetch documents, optionally drives HyDE and a
// bounded rewrite loop, retrieves and reranks candidates, and finally
// drives the LLM gateway to an answer with provenance attached.
// Grounded on the teacher's service.RAGService.Query/QueryStream, with
// the gRPC/tenant plumbing replaced by the configuration-snapshot-
// driven state machine and prompt templates of the original Python
// RAGHelper this system was distilled from.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ragcorpus/ragd/internal/apperr"
	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
	"github.com/ragcorpus/ragd/internal/provenance"
	"github.com/ragcorpus/ragd/internal/rerank"
)

// Embedder is the subset of embedding.Embedder the orchestrator needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the subset of retriever.HybridRetriever the orchestrator
// needs.
type Retriever interface {
	GetRelevant(ctx context.Context, queryText string, queryVec []float32, datasets []string, k int) (domain.RetrievalResult, error)
}

// ChatRequest is the input to a single pipeline run.
type ChatRequest struct {
	Prompt   string
	History  domain.History
	Docs     domain.RetrievalResult // echoed back when no new documents are fetched
	Datasets []string
}

// ChatResult is the outcome of a single pipeline run, shared by the
// non-streaming and streaming entry points.
type ChatResult struct {
	Reply               string
	History             domain.History
	Documents           domain.RetrievalResult
	Rewritten           *string
	Question            string
	FetchedNewDocuments bool
}

// EventKind tags the kind of a pipeline Event emitted during a
// streaming run (spec.md §4.6).
type EventKind string

const (
	EventStep      EventKind = "step"
	EventDocuments EventKind = "documents"
	EventToken     EventKind = "token"
)

// Event is one pipeline-progress notification. Only the field matching
// Kind is populated.
type Event struct {
	Kind      EventKind
	Step      string
	Documents domain.RetrievalResult
	Token     string
}

// Emit receives pipeline events in emission order. A nil Emit is
// equivalent to discarding every event (used by the non-streaming
// entry point).
type Emit func(Event)

func (e Emit) step(label string) {
	if e != nil {
		e(Event{Kind: EventStep, Step: label})
	}
}

// Orchestrator runs PipelineOrchestrator against one fixed
// configuration snapshot. Construct a fresh Orchestrator per request
// from the current snapshot so a configuration reload only affects
// requests started afterward (spec.md §3, §5).
type Orchestrator struct {
	snapshot   *config.Snapshot
	embedder   Embedder
	retriever  Retriever
	reranker   rerank.Reranker
	gateway    *llmgateway.Gateway
	attributor provenance.Attributor // nil when provenance_method == "none"
	tokenizer  *tiktoken.Tiktoken
}

func New(snapshot *config.Snapshot, embedder Embedder, retriever Retriever, reranker rerank.Reranker, gateway *llmgateway.Gateway, attributor provenance.Attributor) *Orchestrator {
	encoding := snapshot.String("summarization_encoder", "cl100k_base")
	tokenizer, _ := tiktoken.GetEncoding(encoding)
	return &Orchestrator{
		snapshot:   snapshot,
		embedder:   embedder,
		retriever:  retriever,
		reranker:   reranker,
		gateway:    gateway,
		attributor: attributor,
		tokenizer:  tokenizer,
	}
}

// prepared carries the state accumulated through ENTRY..RE2 needed to
// build the ANSWER-stage call and the final ChatResult.
type prepared struct {
	workingPrompt string
	documents     domain.RetrievalResult
	rewritten     *string
	fetchedNew    bool
}

// Chat runs the pipeline to completion and returns the full answer
// (spec.md §4.5, the non-streaming path).
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	p, err := o.prepare(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	systemPrompt, userPrompt, historyForCall := o.answerInputs(req, p)
	reply, effectiveHistory, err := o.gateway.Respond(ctx, systemPrompt, userPrompt, historyForCall)
	if err != nil {
		return nil, err
	}
	finalHistory := effectiveHistory.Append(domain.Turn{Role: domain.RoleAssistant, Content: reply})

	if err := o.attribute(ctx, p, reply); err != nil {
		return nil, err
	}

	return &ChatResult{
		Reply:               reply,
		History:             finalHistory,
		Documents:           o.outputDocuments(req, p),
		Rewritten:           p.rewritten,
		Question:            p.workingPrompt,
		FetchedNewDocuments: p.fetchedNew,
	}, nil
}

// ChatStream runs the pipeline, emitting step/documents/token events
// through emit as each stage completes, and returns the same final
// result a Chat call with identical inputs would (spec.md §8's
// streaming-equivalence invariant).
func (o *Orchestrator) ChatStream(ctx context.Context, req ChatRequest, emit Emit) (*ChatResult, error) {
	p, err := o.prepare(ctx, req, emit)
	if err != nil {
		return nil, err
	}
	if p.fetchedNew {
		emit(Event{Kind: EventDocuments, Documents: p.documents})
	}

	systemPrompt, userPrompt, historyForCall := o.answerInputs(req, p)
	stream, effectiveHistory, err := o.gateway.RespondStream(ctx, systemPrompt, userPrompt, historyForCall)
	if err != nil {
		return nil, err
	}

	var reply strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return nil, apperr.Wrap(apperr.KindLLMFailed, "stream token", chunk.Err)
		}
		reply.WriteString(chunk.Token)
		emit(Event{Kind: EventToken, Token: chunk.Token})
	}
	text := llmgateway.CleanReply(reply.String())
	finalHistory := effectiveHistory.Append(domain.Turn{Role: domain.RoleAssistant, Content: text})

	if err := o.attribute(ctx, p, text); err != nil {
		return nil, err
	}

	return &ChatResult{
		Reply:               text,
		History:             finalHistory,
		Documents:           o.outputDocuments(req, p),
		Rewritten:           p.rewritten,
		Question:            p.workingPrompt,
		FetchedNewDocuments: p.fetchedNew,
	}, nil
}

// prepare runs ENTRY through RE2, the portion of the pipeline shared by
// Chat and ChatStream.
func (o *Orchestrator) prepare(ctx context.Context, req ChatRequest, emit Emit) (*prepared, error) {
	history := req.History
	workingPrompt := req.Prompt
	fetchedNew := true
	var documents domain.RetrievalResult
	var rewritten *string
	var embedding []float32

	if len(history) > 0 {
		if o.snapshot.Bool("use_summarization", false) {
			emit.step("Checking whether conversation history needs summarizing")
			summarized, err := o.maybeSummarize(ctx, history)
			if err != nil {
				return nil, err
			}
			history = summarized
		}

		emit.step("Deciding whether new documents are needed")
		reply, _, err := o.gateway.Respond(ctx, nil, o.render("rag_fetch_new_question", map[string]string{"question": workingPrompt}), history)
		if err != nil {
			return nil, err
		}
		if !domain.YesNo(reply) {
			fetchedNew = false
		}
	}

	if fetchedNew {
		useHyde := o.snapshot.Bool("use_hyde", false)
		if useHyde {
			emit.step("Generating a hypothetical answer (HyDE)")
			hyde, _, err := o.gateway.Respond(ctx, nil, o.render("hyde_query", map[string]string{"question": workingPrompt}), nil)
			if err != nil {
				return nil, err
			}
			workingPrompt = hyde
		}

		emit.step("Retrieving relevant documents")
		vec, err := o.embedder.Embed(ctx, workingPrompt)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "embed working prompt", err)
		}
		embedding = vec
		documents, err = o.retrieve(ctx, workingPrompt, vec, req.Datasets)
		if err != nil {
			return nil, err
		}

		if o.snapshot.Bool("use_rewrite_loop", false) && !useHyde {
			emit.step("Checking whether retrieved documents cover the question")
			coverage, _, err := o.gateway.Respond(
				ctx,
				strPtr(o.render("rewrite_query_instruction", map[string]string{"context": formatDocuments(documents)})),
				o.render("rewrite_query_question", map[string]string{"question": workingPrompt}),
				nil,
			)
			if err != nil {
				return nil, err
			}
			if !domain.YesNo(coverage) {
				emit.step("Rewriting the query")
				newPrompt, _, err := o.gateway.Respond(ctx, nil, o.render("rewrite_query_prompt", map[string]string{
					"question":  workingPrompt,
					"motivation": "Can I find the answer in the documents: " + coverage,
				}), nil)
				if err != nil {
					return nil, err
				}
				rewritten = &newPrompt

				emit.step("Retrieving relevant documents for the rewritten query")
				// Reuses the original prompt's embedding per spec.md §9's
				// Open Question decision: preserved for behavioral parity.
				documents, err = o.retrieve(ctx, newPrompt, embedding, req.Datasets)
				if err != nil {
					return nil, err
				}
				workingPrompt = newPrompt
			}
		}
	}

	if o.snapshot.Bool("use_re2", false) && !o.snapshot.Bool("use_hyde", false) {
		emit.step("Applying RE2 repetition priming")
		workingPrompt = fmt.Sprintf("%s\n%s\n%s", workingPrompt, o.snapshot.String("re2_prompt", defaultTemplates["re2_prompt"]), workingPrompt)
	}

	return &prepared{
		workingPrompt: workingPrompt,
		documents:     documents,
		rewritten:     rewritten,
		fetchedNew:    fetchedNew,
	}, nil
}

// retrieve runs RETRIEVE and, when enabled, RERANK, truncating to
// rerank_k at the call site per spec.md §4.2.
func (o *Orchestrator) retrieve(ctx context.Context, queryText string, vec []float32, datasets []string) (domain.RetrievalResult, error) {
	k := o.snapshot.Int("top_k", 10)
	docs, err := o.retriever.GetRelevant(ctx, queryText, vec, datasets, k)
	if err != nil {
		return nil, err
	}
	docs = deduplicateNearDuplicates(docs, 0.7)

	if !o.snapshot.Bool("rerank", false) || o.reranker == nil {
		return docs, nil
	}
	reranked, err := o.reranker.Rerank(ctx, docs, queryText)
	if err != nil {
		return nil, err
	}
	rerankK := o.snapshot.Int("rerank_k", k)
	if rerankK > 0 && rerankK < len(reranked) {
		reranked = reranked[:rerankK]
	}
	return reranked, nil
}

// answerInputs builds the ANSWER-stage (system, user, history) triple
// per the three branches in spec.md §4.5.
func (o *Orchestrator) answerInputs(req ChatRequest, p *prepared) (*string, string, domain.History) {
	switch {
	case len(req.History) == 0:
		sys := o.render("rag_instruction", map[string]string{"context": formatDocuments(p.documents)})
		return &sys, o.render("rag_question_initial", map[string]string{"question": p.workingPrompt}), domain.History{}
	case p.fetchedNew:
		sys := o.render("rag_instruction", map[string]string{"context": formatDocuments(p.documents)})
		return &sys, o.render("rag_question_followup", map[string]string{"question": p.workingPrompt}), req.History.WithoutSystem()
	default:
		return nil, o.render("rag_question_followup", map[string]string{"question": p.workingPrompt}), req.History
	}
}

// outputDocuments substitutes the request's echoed documents when no
// new ones were fetched (spec.md §6's /chat response contract).
func (o *Orchestrator) outputDocuments(req ChatRequest, p *prepared) domain.RetrievalResult {
	if !p.fetchedNew {
		return req.Docs
	}
	return p.documents
}

// attribute runs PROVENANCE: only when fetchedNew, docs non-empty, and
// a method is configured (spec.md §4.5).
func (o *Orchestrator) attribute(ctx context.Context, p *prepared, answer string) error {
	if !p.fetchedNew || len(p.documents) == 0 || o.attributor == nil {
		return nil
	}
	if o.snapshot.Provenance() == config.ProvenanceNone {
		return nil
	}
	return o.attributor.Attribute(ctx, answer, p.documents)
}

// maybeSummarize collapses history to [turn0, assistant(summary)] once
// its token count exceeds the configured threshold (SUMMARIZE).
func (o *Orchestrator) maybeSummarize(ctx context.Context, history domain.History) (domain.History, error) {
	historyString := formatHistory(history)
	threshold := o.snapshot.Int("summarization_threshold", 2000)
	if o.tokenCount(historyString) <= threshold {
		return history, nil
	}

	summary, _, err := o.gateway.Respond(ctx, nil, o.render("summarization_query", map[string]string{"history": historyString}), nil)
	if err != nil {
		return nil, err
	}

	out := domain.History{}
	if len(history) > 0 {
		out = append(out, history[0])
	}
	return out.Append(domain.Turn{Role: domain.RoleAssistant, Content: summary}), nil
}

func (o *Orchestrator) tokenCount(text string) int {
	if o.tokenizer == nil {
		return 0
	}
	return len(o.tokenizer.Encode(text, nil, nil))
}

func formatHistory(history domain.History) string {
	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s: %s", turn.Role, turn.Content)
	}
	return sb.String()
}

func formatDocuments(docs domain.RetrievalResult) string {
	if len(docs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Doc %d] (%s)\n%s", i+1, d.Metadata.SourcePath, d.Text)
	}
	return sb.String()
}

func strPtr(s string) *string { return &s }
