// Package httpapi implements spec.md §6's HTTP surface: a chi router
// wiring the config store, retriever, ingestor, and a per-request
// orchestrator together, with the error-kind-to-status mapping of
// spec.md §7. Grounded on the teacher's internal/server.HTTPServer —
// same middleware stack, same CORS/logging shape — with the
// grpc-gateway plumbing replaced by direct chi handlers since this
// system has no gRPC surface to proxy.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/embedding"
	"github.com/ragcorpus/ragd/internal/ingest"
	"github.com/ragcorpus/ragd/internal/llmgateway"
	"github.com/ragcorpus/ragd/internal/orchestrator"
	"github.com/ragcorpus/ragd/internal/provenance"
	"github.com/ragcorpus/ragd/internal/rerank"
)

// Retriever is the full surface the HTTP layer needs: retrieval for
// the orchestrator plus the directory/management operations spec.md
// §6 exposes over HTTP.
type Retriever interface {
	orchestrator.Retriever
	ingest.Retriever
	GetAllDocumentNames(ctx context.Context) ([]string, error)
	GetDatasets(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, paths []string) (int, error)
}

// components are the configuration-dependent collaborators rebuilt on
// a PUT /config request with reinitialize=true (spec.md §6).
type components struct {
	embedder   embedding.Embedder
	gateway    *llmgateway.Gateway
	reranker   rerank.Reranker
	attributor provenance.Attributor
}

// Server holds the long-lived collaborators a fresh Orchestrator is
// built from on every request (spec.md §5: "Construct a fresh
// Orchestrator per request from the current snapshot").
type Server struct {
	store     *config.Store
	retriever Retriever
	log       zerolog.Logger

	mu    sync.RWMutex
	comps components
}

// New builds a Server and performs the initial component build from
// store's current snapshot.
func New(ctx context.Context, store *config.Store, retriever Retriever, log zerolog.Logger) (*Server, error) {
	s := &Server{store: store, retriever: retriever, log: log}
	if err := s.rebuild(ctx, store.Current()); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild selects backend, embedder, reranker, and attributor fresh
// from snapshot and swaps them in atomically.
func (s *Server) rebuild(ctx context.Context, snapshot *config.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	backend, err := llmgateway.Select(ctx, snapshot)
	if err != nil {
		return err
	}
	gateway := llmgateway.New(backend, snapshot.Float("temperature", 0))
	embedder := embedding.Select(snapshot)

	var reranker rerank.Reranker
	if snapshot.Bool("rerank", false) {
		reranker = rerank.NewLLMReranker(gateway)
	}
	attributor := orchestrator.SelectAttributor(snapshot.Provenance(), reranker, gateway, embedder.Embed)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.comps = components{embedder: embedder, gateway: gateway, reranker: reranker, attributor: attributor}
	return nil
}

func (s *Server) current() components {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comps
}

// orchestratorFor builds a fresh Orchestrator against the store's
// current snapshot and the currently active components.
func (s *Server) orchestratorFor() *orchestrator.Orchestrator {
	comps := s.current()
	return orchestrator.New(s.store.Current(), comps.embedder, s.retriever, comps.reranker, comps.gateway, comps.attributor)
}

// Router builds the chi.Mux exposing spec.md §6's HTTP surface.
func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Post("/create_title", s.handleCreateTitle)
	r.Post("/chat", s.handleChat)
	r.Post("/chat_stream", s.handleChatStream)
	r.Get("/get_documents", s.handleGetDocuments)
	r.Post("/get_document", s.handleGetDocument)
	r.Post("/delete", s.handleDelete)
	r.Post("/add_document", s.handleAddDocument)
	r.Get("/get_datasets", s.handleGetDatasets)
	r.Get("/config", s.handleGetConfig)
	r.Put("/config", s.handlePutConfig)

	return r
}

func (s *Server) loggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := len(allowedOrigins) == 0
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				if len(allowedOrigins) == 0 {
					origin = "*"
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// historyOrEmpty normalizes a possibly-nil request history field.
func historyOrEmpty(h domain.History) domain.History {
	if h == nil {
		return domain.History{}
	}
	return h
}
