package config

import (
	"strconv"
	"strings"

	"github.com/ragcorpus/ragd/internal/apperr"
)

// Splitter names the chunker strategy an ingest run uses.
type Splitter string

const (
	SplitterRecursiveCharacter Splitter = "RecursiveCharacterTextSplitter"
	SplitterSemantic           Splitter = "SemanticChunker"
	SplitterParagraph          Splitter = "ParagraphChunker"
)

// ProvenanceMethod names how an answer's supporting chunks are scored.
type ProvenanceMethod string

const (
	ProvenanceNone       ProvenanceMethod = "none"
	ProvenanceRerank     ProvenanceMethod = "rerank"
	ProvenanceLLM        ProvenanceMethod = "llm"
	ProvenanceSimilarity ProvenanceMethod = "similarity"
)

// knownKeys enumerates every option name spec.md §6 names. Keys absent
// from a loaded file simply take the zero value of their accessor.
var knownKeys = []string{
	"use_openai", "use_gemini", "use_azure", "use_anthropic", "use_ollama",
	"openai_model", "openai_api_key", "openai_base_url",
	"gemini_model", "gemini_api_key",
	"azure_model", "azure_api_key", "azure_base_url",
	"anthropic_model", "anthropic_api_key",
	"ollama_model", "ollama_base_url",
	"temperature",
	"embedding_model", "embedding_cpu",
	"splitter", "chunk_size", "chunk_overlap",
	"data_directory", "file_types", "json_schema", "csv_separator",
	"rerank", "rerank_k",
	"use_hyde", "use_rewrite_loop", "use_re2", "use_summarization",
	"summarization_threshold", "summarization_encoder",
	"hyde_query", "rewrite_query_instruction", "rewrite_query_question",
	"rewrite_query_prompt", "re2_prompt", "rag_instruction",
	"rag_question_initial", "rag_question_followup",
	"rag_fetch_new_question", "summarization_query",
	"provenance_method",
	"top_k",
}

// Snapshot is the immutable configuration the orchestrator is
// parameterized by (spec.md §3). A reload produces a new Snapshot and
// swaps it in atomically; nothing reads configuration mid-request.
type Snapshot struct {
	values map[string]string
}

func newSnapshot(values map[string]string) *Snapshot {
	return &Snapshot{values: values}
}

// Get returns the raw string value for key, and whether it was present.
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value for key, or def if absent or empty.
func (s *Snapshot) String(key, def string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool returns the parsed boolean value for key, or def if absent or
// unparsable.
func (s *Snapshot) Bool(key string, def bool) bool {
	v, ok := s.values[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the parsed integer value for key, or def if absent or
// unparsable.
func (s *Snapshot) Int(key string, def int) int {
	v, ok := s.values[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns the parsed float value for key, or def if absent or
// unparsable.
func (s *Snapshot) Float(key string, def float64) float64 {
	v, ok := s.values[key]
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// StringList splits a comma-separated value for key, trimming whitespace
// around each element and dropping empty elements.
func (s *Snapshot) StringList(key string) []string {
	v, ok := s.values[key]
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Splitter returns the configured chunker strategy, defaulting to
// RecursiveCharacterTextSplitter.
func (s *Snapshot) Splitter() Splitter {
	return Splitter(s.String("splitter", string(SplitterRecursiveCharacter)))
}

// Provenance returns the configured provenance attribution method,
// defaulting to "none".
func (s *Snapshot) Provenance() ProvenanceMethod {
	return ProvenanceMethod(s.String("provenance_method", string(ProvenanceNone)))
}

// CSVSeparator returns the configured CSV field separator, defaulting
// to a comma. Only the first rune of csv_separator is honored.
func (s *Snapshot) CSVSeparator() rune {
	for _, r := range s.String("csv_separator", ",") {
		return r
	}
	return ','
}

// All returns a copy of every key/value pair currently set, used by the
// GET /config handler.
func (s *Snapshot) All() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Validate enforces spec.md §7's config_invalid conditions: no backend
// selected, or a selected backend missing its credential.
func (s *Snapshot) Validate() error {
	backends := map[string]string{
		"use_openai":    "openai_api_key",
		"use_gemini":    "gemini_api_key",
		"use_azure":     "azure_api_key",
		"use_anthropic": "anthropic_api_key",
	}
	anySelected := false
	for flag, credKey := range backends {
		if !s.Bool(flag, false) {
			continue
		}
		anySelected = true
		if _, ok := s.Get(credKey); !ok {
			return apperr.New(apperr.KindConfigInvalid, "missing credential "+credKey+" for "+flag)
		}
	}
	if s.Bool("use_ollama", false) {
		anySelected = true
	}
	if !anySelected {
		return apperr.New(apperr.KindConfigInvalid, "no backend selected")
	}
	if _, ok := s.Get("data_directory"); !ok {
		return apperr.New(apperr.KindConfigInvalid, "missing required option data_directory")
	}
	return nil
}
