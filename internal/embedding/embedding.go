// Package embedding provides the Embedder contract the retriever and
// orchestrator embed text through. The embedding model itself is an
// out-of-scope external collaborator (spec.md §1); this package
// supplies concrete backends so the pipeline is runnable end to end.
package embedding

import "context"

// Embedder maps text to a fixed-dimension real vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// ModelConfig describes practical limits for a named embedding model,
// used to pick sane default chunk sizes. Adapted from the teacher's
// embedder.KnownModels table.
type ModelConfig struct {
	Dimension        int
	ContextLength    int
	MaxChunkWords    int
	TargetChunkWords int
}

var knownModels = map[string]ModelConfig{
	"nomic-embed-text": {
		Dimension:        768,
		ContextLength:    8192,
		MaxChunkWords:    512,
		TargetChunkWords: 256,
	},
	"mxbai-embed-large": {
		Dimension:        1024,
		ContextLength:    512,
		MaxChunkWords:    300,
		TargetChunkWords: 150,
	},
	"text-embedding-3-small": {
		Dimension:        1536,
		ContextLength:    8191,
		MaxChunkWords:    512,
		TargetChunkWords: 256,
	},
	"text-embedding-3-large": {
		Dimension:        3072,
		ContextLength:    8191,
		MaxChunkWords:    512,
		TargetChunkWords: 256,
	},
}

// GetModelConfig returns the configuration for a known model, or
// conservative defaults for an unrecognized one.
func GetModelConfig(modelName string) ModelConfig {
	if cfg, ok := knownModels[modelName]; ok {
		return cfg
	}
	return ModelConfig{
		Dimension:        768,
		ContextLength:    2048,
		MaxChunkWords:    256,
		TargetChunkWords: 128,
	}
}
