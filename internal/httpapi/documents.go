package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ragcorpus/ragd/internal/apperr"
	"github.com/ragcorpus/ragd/internal/chunking"
	"github.com/ragcorpus/ragd/internal/ingest"
)

func (s *Server) handleGetDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := s.retriever.GetAllDocumentNames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleGetDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.retriever.GetDatasets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, datasets)
}

type filenameRequest struct {
	Filename string `json:"filename"`
}

// dataDirectory reads data_directory fresh off the current snapshot so
// a config reload takes effect without restarting the server.
func (s *Server) dataDirectory() string {
	return s.store.Current().String("data_directory", "")
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	var req filenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeError(w, badRequest("missing required field filename"))
		return
	}

	path := filepath.Join(s.dataDirectory(), req.Filename)
	if _, err := os.Stat(path); err != nil {
		writeError(w, apperr.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Filename))
	http.ServeFile(w, r, path)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req filenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeError(w, badRequest("missing required field filename"))
		return
	}

	path := filepath.Join(s.dataDirectory(), req.Filename)
	if _, err := os.Stat(path); err != nil {
		writeError(w, apperr.ErrNotFound)
		return
	}
	if err := os.Remove(path); err != nil {
		writeError(w, apperr.Wrap(apperr.KindRetrievalFailed, "remove file", err))
		return
	}

	count, err := s.retriever.Delete(r.Context(), []string{path})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

type addDocumentResponse struct {
	File    string `json:"file"`
	Dataset string `json:"dataset"`
}

// handleAddDocument saves the uploaded multipart file under
// data_directory/dataset/ and ingests it immediately (spec.md §6).
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, badRequest("invalid multipart form"))
		return
	}

	dataset := r.FormValue("dataset")
	if dataset == "" {
		writeError(w, badRequest("missing required field dataset"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, badRequest("missing required field file"))
		return
	}
	defer file.Close()

	datasetDir := filepath.Join(s.dataDirectory(), dataset)
	if err := os.MkdirAll(datasetDir, 0o755); err != nil {
		writeError(w, apperr.Wrap(apperr.KindRetrievalFailed, "create dataset directory", err))
		return
	}

	path := filepath.Join(datasetDir, header.Filename)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindRetrievalFailed, "save uploaded file", err))
		return
	}
	_, copyErr := dst.ReadFrom(file)
	closeErr := dst.Close()
	if copyErr != nil {
		writeError(w, apperr.Wrap(apperr.KindRetrievalFailed, "save uploaded file", copyErr))
		return
	}
	if closeErr != nil {
		writeError(w, apperr.Wrap(apperr.KindRetrievalFailed, "save uploaded file", closeErr))
		return
	}

	snapshot := s.store.Current()
	ingestor := ingest.New(s.current().embedder, s.retriever, s.log)
	opts := ingest.Options{
		DataDirectory: snapshot.String("data_directory", ""),
		FileTypes:     snapshot.StringList("file_types"),
		JSONSelector:  snapshot.String("json_schema", ""),
		CSVSeparator:  snapshot.CSVSeparator(),
		Splitter: chunking.Config{
			Strategy: snapshot.Splitter(),
			Size:     snapshot.Int("chunk_size", 1000),
			Overlap:  snapshot.Int("chunk_overlap", 200),
		},
	}
	if _, err := ingestor.AddFile(r.Context(), path, opts); err != nil {
		writeError(w, apperr.Wrap(apperr.KindIngestItemFailed, "ingest uploaded file", err))
		return
	}

	writeJSON(w, http.StatusOK, addDocumentResponse{File: path, Dataset: dataset})
}
