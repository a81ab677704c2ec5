// Package retriever implements HybridRetriever (spec.md §4.1): chunk
// persistence plus top-k retrieval fusing dense vector similarity with
// lexical full-text search. Adapted from the teacher's
// internal/repository/postgres DB wrapper; Qdrant is dropped in favor
// of Postgres + pgvector so dense and lexical search live in one store
// (see DESIGN.md).
package retriever

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool connection pool shared by every request (spec.md
// §5): every retriever call acquires a connection for its duration and
// releases it on all exit paths via pgx's pool semantics.
type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("retriever: parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("retriever: create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("retriever: ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
