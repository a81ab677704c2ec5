package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/chunking"
	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/domain"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

type fakeRetriever struct {
	added []domain.Chunk
}

func (f *fakeRetriever) Add(ctx context.Context, chunks []domain.Chunk) error {
	f.added = append(f.added, chunks...)
	return nil
}

func TestContentHashMatchesMD5(t *testing.T) {
	sum := md5.Sum([]byte("hello world"))
	require.Equal(t, hex.EncodeToString(sum[:]), contentHash("hello world"))
}

func TestDatasetForDerivesParentDirectoryName(t *testing.T) {
	dataset, err := datasetFor("/data/manuals/guide.txt", "/data")
	require.NoError(t, err)
	require.Equal(t, "manuals", dataset)
}

func TestDatasetForRootLevelFileIsEmpty(t *testing.T) {
	dataset, err := datasetFor("/data/guide.txt", "/data")
	require.NoError(t, err)
	require.Equal(t, "", dataset)
}

func TestRunIngestsAllowedFilesAndDedupes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "manuals"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manuals", "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manuals", "b.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.exe"), []byte("binary"), 0o644))

	retriever := &fakeRetriever{}
	ig := New(fakeEmbedder{}, retriever, zerolog.Nop())

	result, err := ig.Run(context.Background(), Options{
		DataDirectory: dir,
		FileTypes:     []string{"txt"},
		Splitter:      chunking.Config{Strategy: config.SplitterRecursiveCharacter, Size: 512},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesSeen)
	require.Equal(t, 2, result.FilesIngested)
	require.Equal(t, 1, result.ChunksAdded)
	require.Len(t, retriever.added, 1)
	require.Equal(t, "manuals", retriever.added[0].Metadata.Dataset)
}

func TestRunSkipsUnconvertibleFileWithoutAbortingBatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte("fine content here"), 0o644))

	retriever := &fakeRetriever{}
	ig := New(fakeEmbedder{}, retriever, zerolog.Nop())

	result, err := ig.Run(context.Background(), Options{
		DataDirectory: dir,
		FileTypes:     []string{"txt", "json"},
		Splitter:      chunking.Config{Strategy: config.SplitterRecursiveCharacter, Size: 512},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesSeen)
	require.Equal(t, 1, result.FilesIngested)
	require.Len(t, result.Errors, 1)
	require.Equal(t, 1, result.ChunksAdded)
}
