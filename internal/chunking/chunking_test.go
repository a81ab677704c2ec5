package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/config"
)

func TestRecursiveCharacterSplitterWindows(t *testing.T) {
	text := strings.Repeat("word ", 100)
	s := New(Config{Strategy: config.SplitterRecursiveCharacter, Size: 10, Overlap: 2})
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, len(strings.Fields(c)), 10)
	}
}

func TestRecursiveCharacterSplitterEmptyText(t *testing.T) {
	s := New(Config{Strategy: config.SplitterRecursiveCharacter, Size: 10})
	require.Empty(t, s.Split("   "))
}

func TestParagraphChunkerKeepsParagraphsWhole(t *testing.T) {
	text := "first paragraph here.\n\nsecond paragraph here."
	s := New(Config{Strategy: config.SplitterParagraph, Size: 100})
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "first paragraph")
	require.Contains(t, chunks[0], "second paragraph")
}

func TestSemanticChunkerKeepsCodeBlockAtomic(t *testing.T) {
	text := "# Title\n\nSome intro text.\n\n```go\nfunc main() {}\n```\n\nMore text after."
	s := New(Config{Strategy: config.SplitterSemantic, Size: 512})
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	var foundCode bool
	for _, c := range chunks {
		if strings.Contains(c, "func main()") {
			foundCode = true
		}
	}
	require.True(t, foundCode)
}

func TestUnknownStrategyDefaultsToRecursive(t *testing.T) {
	s := New(Config{Strategy: config.Splitter("bogus"), Size: 5})
	_, ok := s.(*recursiveCharacterSplitter)
	require.True(t, ok)
}
