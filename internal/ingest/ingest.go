// Package ingest implements the Ingestor (spec.md §4.4): walks the
// configured data directory, converts and chunks each allowed file,
// embeds and deduplicates the resulting chunks, and calls
// HybridRetriever.Add. Adapted from the teacher's ingestion.Pipeline,
// generalized onto the spec's MD5 chunk-identity invariant and
// directory-derived dataset naming.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ragcorpus/ragd/internal/chunking"
	"github.com/ragcorpus/ragd/internal/convert"
	"github.com/ragcorpus/ragd/internal/domain"
)

// Embedder is the subset of embedding.Embedder the Ingestor needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the subset of retriever.HybridRetriever the Ingestor
// needs.
type Retriever interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
}

// Options configures a single ingest run, mirroring the enumerated
// options in spec.md §6 relevant to ingestion.
type Options struct {
	DataDirectory string
	FileTypes     []string
	JSONSelector  string
	CSVSeparator  rune
	Splitter      chunking.Config
}

// Result reports per-run counts; per-file failures are recorded
// separately and never abort the batch.
type Result struct {
	FilesSeen     int
	FilesIngested int
	ChunksAdded   int
	Errors        []ItemError
}

// ItemError pairs a source path with the error encountered converting
// or chunking it (spec.md §7's ingest_item_failed, non-fatal).
type ItemError struct {
	Path string
	Err  error
}

// Ingestor walks a data directory and populates a Retriever.
type Ingestor struct {
	embedder  Embedder
	retriever Retriever
	log       zerolog.Logger
}

func New(embedder Embedder, retriever Retriever, log zerolog.Logger) *Ingestor {
	return &Ingestor{embedder: embedder, retriever: retriever, log: log}
}

// Run enumerates allowed files under opts.DataDirectory, converts and
// chunks each, and adds the deduplicated batch to the retriever.
// Per-file errors are logged and skipped; the batch is never aborted.
func (ig *Ingestor) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result
	splitter := chunking.New(opts.Splitter)
	seen := make(map[string]domain.Chunk)

	err := filepath.WalkDir(opts.DataDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := convert.ExtOf(path)
		if !convert.AllowListed(ext, opts.FileTypes) {
			return nil
		}
		result.FilesSeen++

		chunks, ingestErr := ig.processFile(ctx, path, ext, opts, splitter)
		if ingestErr != nil {
			ig.log.Warn().Err(ingestErr).Str("path", path).Msg("ingest item failed")
			result.Errors = append(result.Errors, ItemError{Path: path, Err: ingestErr})
			return nil
		}

		for _, c := range chunks {
			seen[c.ID] = c
		}
		result.FilesIngested++
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("ingest: walk data directory: %w", err)
	}

	batch := make([]domain.Chunk, 0, len(seen))
	for _, c := range seen {
		batch = append(batch, c)
	}
	if len(batch) > 0 {
		if err := ig.retriever.Add(ctx, batch); err != nil {
			return result, fmt.Errorf("ingest: add batch: %w", err)
		}
	}
	result.ChunksAdded = len(batch)
	return result, nil
}

// AddFile converts, chunks, embeds, and adds a single file already
// saved at path under opts.DataDirectory (spec.md §6's /add_document),
// without re-walking the rest of the directory.
func (ig *Ingestor) AddFile(ctx context.Context, path string, opts Options) (int, error) {
	ext := convert.ExtOf(path)
	splitter := chunking.New(opts.Splitter)
	chunks, err := ig.processFile(ctx, path, ext, opts, splitter)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := ig.retriever.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("ingest: add file: %w", err)
	}
	return len(chunks), nil
}

func (ig *Ingestor) processFile(ctx context.Context, path, ext string, opts Options, splitter chunking.Splitter) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	converter := convert.ForExtension(ext, convert.Options{
		JSONSelector: opts.JSONSelector,
		CSVSeparator: opts.CSVSeparator,
	})
	text, err := converter.Convert(data)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	dataset, err := datasetFor(path, opts.DataDirectory)
	if err != nil {
		return nil, err
	}

	pieces := splitter.Split(text)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		vec, err := ig.embedder.Embed(ctx, piece)
		if err != nil {
			return nil, fmt.Errorf("embed chunk: %w", err)
		}
		chunks = append(chunks, domain.Chunk{
			ID:        contentHash(piece),
			Text:      piece,
			Embedding: vec,
			Metadata: domain.Metadata{
				SourcePath: path,
				Dataset:    dataset,
			},
		})
	}
	return chunks, nil
}

// contentHash is the chunk identifier: a pure function of the text, per
// spec.md §3 and the md5("hello world") scenario in §8.
func contentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// datasetFor derives the dataset name from the last directory
// component of the file's parent path relative to the data root
// (spec.md §4.4 step 4). A file directly under the data root has an
// empty dataset.
func datasetFor(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return "", nil
	}
	return filepath.Base(dir), nil
}
