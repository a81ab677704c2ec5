package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ragcorpus/ragd/internal/apperr"
	"github.com/ragcorpus/ragd/internal/domain"
)

// rrfConstant is the reciprocal-rank-fusion constant c (spec.md §4.1),
// default 60.
const rrfConstant = 60

// fusionCandidateMultiplier widens each ranked list before fusion so
// candidates that only place well in one modality still have a chance
// to surface in the fused top-k.
const fusionCandidateMultiplier = 4

// HybridRetriever is the Postgres + pgvector + tsvector backed
// implementation of spec.md §4.1's contract.
type HybridRetriever struct {
	db *DB
}

func New(db *DB) *HybridRetriever {
	return &HybridRetriever{db: db}
}

// Setup idempotently provisions storage for vectors of dimension dim,
// a lexical full-text index over chunk text, and a metadata index.
func (r *HybridRetriever) Setup(ctx context.Context, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata_json JSONB NOT NULL DEFAULT '{}'::jsonb,
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, dim),
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS chunks_content_tsv_idx ON chunks USING GIN (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS chunks_dataset_idx ON chunks ((metadata_json->>'dataset'))`,
		`CREATE INDEX IF NOT EXISTS chunks_source_path_idx ON chunks ((metadata_json->>'source_path'))`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Pool.Exec(ctx, stmt); err != nil {
			return apperr.Wrap(apperr.KindRetrievalFailed, "provision storage", err)
		}
	}
	return nil
}

// HasData reports whether any Chunk exists.
func (r *HybridRetriever) HasData(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chunks LIMIT 1)`).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.KindRetrievalFailed, "check store contents", err)
	}
	return exists, nil
}

// Add upserts chunks by identifier; identical identifiers are no-ops.
// Runs inside one transaction so the call is atomic per spec.md §4.1.
func (r *HybridRetriever) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindRetrievalFailed, "begin add transaction", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return apperr.Wrap(apperr.KindRetrievalFailed, "marshal chunk metadata", err)
		}
		batch.Queue(`
			INSERT INTO chunks (id, content, embedding, metadata_json)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.Text, pgvector.NewVector(c.Embedding), metaJSON)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return apperr.Wrap(apperr.KindRetrievalFailed, "upsert chunk", err)
		}
	}
	if err := results.Close(); err != nil {
		return apperr.Wrap(apperr.KindRetrievalFailed, "close batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindRetrievalFailed, "commit add transaction", err)
	}
	return nil
}

type rankedRow struct {
	id       string
	text     string
	metaJSON []byte
	distance float64
}

// GetRelevant returns up to K results fusing dense similarity rank and
// lexical rank via reciprocal rank fusion, scoped to datasets (empty
// means "all datasets").
func (r *HybridRetriever) GetRelevant(ctx context.Context, queryText string, queryVec []float32, datasets []string, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		k = 10
	}
	candidateLimit := k * fusionCandidateMultiplier

	dense, err := r.denseSearch(ctx, queryVec, datasets, candidateLimit)
	if err != nil {
		return nil, err
	}
	lexical, err := r.lexicalSearch(ctx, queryText, datasets, candidateLimit)
	if err != nil {
		return nil, err
	}

	fused := fuse(dense, lexical)
	if len(fused) > k {
		fused = fused[:k]
	}

	rows := make(map[string]rankedRow, len(dense)+len(lexical))
	for _, row := range dense {
		rows[row.id] = row
	}
	for _, row := range lexical {
		if _, ok := rows[row.id]; !ok {
			rows[row.id] = row
		}
	}

	result := make(domain.RetrievalResult, 0, len(fused))
	for _, f := range fused {
		row := rows[f.id]
		var meta domain.Metadata
		if err := json.Unmarshal(row.metaJSON, &meta); err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "unmarshal chunk metadata", err)
		}
		result = append(result, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:       row.id,
				Text:     row.text,
				Metadata: meta,
			},
			FusedScore: f.score,
			Distance:   row.distance,
		})
	}
	return result, nil
}

func (r *HybridRetriever) denseSearch(ctx context.Context, vec []float32, datasets []string, limit int) ([]rankedRow, error) {
	query := `
		SELECT id, content, metadata_json, embedding <=> $1 AS distance
		FROM chunks
		WHERE ($2::text[] IS NULL OR metadata_json->>'dataset' = ANY($2))
		ORDER BY distance ASC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, pgvector.NewVector(vec), datasetFilter(datasets), limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRetrievalFailed, "dense search", err)
	}
	defer rows.Close()

	var out []rankedRow
	for rows.Next() {
		var row rankedRow
		if err := rows.Scan(&row.id, &row.text, &row.metaJSON, &row.distance); err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "scan dense row", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *HybridRetriever) lexicalSearch(ctx context.Context, queryText string, datasets []string, limit int) ([]rankedRow, error) {
	query := `
		SELECT id, content, metadata_json, ts_rank(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM chunks
		WHERE content_tsv @@ plainto_tsquery('english', $1)
		  AND ($2::text[] IS NULL OR metadata_json->>'dataset' = ANY($2))
		ORDER BY rank DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, queryText, datasetFilter(datasets), limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRetrievalFailed, "lexical search", err)
	}
	defer rows.Close()

	var out []rankedRow
	for rows.Next() {
		var row rankedRow
		var rank float64
		if err := rows.Scan(&row.id, &row.text, &row.metaJSON, &rank); err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "scan lexical row", err)
		}
		row.distance = -rank
		out = append(out, row)
	}
	return out, rows.Err()
}

func datasetFilter(datasets []string) []string {
	if len(datasets) == 0 {
		return nil
	}
	return datasets
}

type fusedCandidate struct {
	id    string
	score float64
}

// fuse combines two rank-ordered lists by reciprocal rank fusion;
// candidates in only one list still participate. Ties are broken by
// identifier lexicographic order for determinism (spec.md §4.1).
func fuse(dense, lexical []rankedRow) []fusedCandidate {
	scores := make(map[string]float64)
	for rank, row := range dense {
		scores[row.id] += 1.0 / float64(rrfConstant+rank+1)
	}
	for rank, row := range lexical {
		scores[row.id] += 1.0 / float64(rrfConstant+rank+1)
	}

	out := make([]fusedCandidate, 0, len(scores))
	for id, score := range scores {
		out = append(out, fusedCandidate{id: id, score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}

// GetAllDocumentNames returns the distinct source paths across all
// Chunks.
func (r *HybridRetriever) GetAllDocumentNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT metadata_json->>'source_path' FROM chunks ORDER BY 1`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRetrievalFailed, "list document names", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "scan document name", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetDatasets returns the distinct dataset values.
func (r *HybridRetriever) GetDatasets(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT metadata_json->>'dataset' FROM chunks ORDER BY 1`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRetrievalFailed, "list datasets", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalFailed, "scan dataset", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// Delete removes all Chunks whose metadata.source_path is in paths,
// returning the deletion count.
func (r *HybridRetriever) Delete(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE metadata_json->>'source_path' = ANY($1)`, paths)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindRetrievalFailed, "delete by source path", err)
	}
	return int(tag.RowsAffected()), nil
}
