package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ragcorpus/ragd/internal/chunking"
	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/embedding"
	"github.com/ragcorpus/ragd/internal/httpapi"
	"github.com/ragcorpus/ragd/internal/ingest"
	"github.com/ragcorpus/ragd/internal/retriever"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}

func run(log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot, err := config.LoadBootstrap()
	if err != nil {
		return fmt.Errorf("load bootstrap config: %w", err)
	}
	if lvl, parseErr := zerolog.ParseLevel(boot.LogLevel); parseErr == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Info().Str("environment", boot.Environment).Int("http_port", boot.HTTPPort).Msg("starting ragd")

	store, err := config.Open(boot.OptionsPath)
	if err != nil {
		return fmt.Errorf("open options file: %w", err)
	}
	snapshot := store.Current()

	db, err := retriever.NewDB(ctx, boot.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info().Msg("connected to postgres")

	embedder := embedding.Select(snapshot)
	if err := retriever.New(db).Setup(ctx, embedder.Dimension()); err != nil {
		return fmt.Errorf("provision retriever storage: %w", err)
	}
	hybridRetriever := retriever.New(db)

	hasData, err := hybridRetriever.HasData(ctx)
	if err != nil {
		return fmt.Errorf("check existing data: %w", err)
	}
	if !hasData {
		if err := coldIngest(ctx, log, snapshot, embedder, hybridRetriever); err != nil {
			return fmt.Errorf("cold ingest: %w", err)
		}
	}

	api, err := httpapi.New(ctx, store, hybridRetriever, log)
	if err != nil {
		return fmt.Errorf("build http api: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", boot.HTTPPort),
		Handler:      api.Router([]string{"*"}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: boot.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", boot.HTTPPort).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server")
	}

	log.Info().Msg("server stopped")
	return nil
}

// coldIngest blocks request acceptance until the configured data
// directory has been fully ingested (spec.md §5).
func coldIngest(ctx context.Context, log zerolog.Logger, snapshot *config.Snapshot, embedder embedding.Embedder, r *retriever.HybridRetriever) error {
	dataDir := snapshot.String("data_directory", "")
	if dataDir == "" {
		log.Warn().Msg("no data_directory configured, skipping cold ingest")
		return nil
	}

	ingestor := ingest.New(embedder, r, log)
	result, err := ingestor.Run(ctx, ingest.Options{
		DataDirectory: dataDir,
		FileTypes:     snapshot.StringList("file_types"),
		JSONSelector:  snapshot.String("json_schema", ""),
		CSVSeparator:  snapshot.CSVSeparator(),
		Splitter: chunking.Config{
			Strategy: snapshot.Splitter(),
			Size:     snapshot.Int("chunk_size", 1000),
			Overlap:  snapshot.Int("chunk_overlap", 200),
		},
	})
	if err != nil {
		return err
	}
	log.Info().
		Int("files_seen", result.FilesSeen).
		Int("files_ingested", result.FilesIngested).
		Int("chunks_added", result.ChunksAdded).
		Int("errors", len(result.Errors)).
		Msg("cold ingest complete")
	return nil
}
