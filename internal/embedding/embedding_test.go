package embedding

import "testing"

import "github.com/stretchr/testify/require"

func TestGetModelConfigKnownModel(t *testing.T) {
	cfg := GetModelConfig("nomic-embed-text")
	require.Equal(t, 768, cfg.Dimension)
}

func TestGetModelConfigUnknownModelDefaults(t *testing.T) {
	cfg := GetModelConfig("some-future-model")
	require.Equal(t, 768, cfg.Dimension)
	require.Equal(t, 2048, cfg.ContextLength)
}
