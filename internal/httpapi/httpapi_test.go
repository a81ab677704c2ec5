package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
)

type scriptedBackend struct {
	reply string
}

func (b *scriptedBackend) Complete(ctx context.Context, messages domain.History, temperature float64) (string, error) {
	return b.reply, nil
}

func (b *scriptedBackend) Stream(ctx context.Context, messages domain.History, temperature float64) (<-chan llmgateway.StreamEvent, error) {
	ch := make(chan llmgateway.StreamEvent, len(b.reply))
	for _, r := range b.reply {
		ch <- llmgateway.StreamEvent{Token: string(r)}
	}
	close(ch)
	return ch, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (fakeEmbedder) Dimension() int    { return 1 }
func (fakeEmbedder) ModelName() string { return "fake" }

type fakeRetriever struct {
	result  domain.RetrievalResult
	docs    []string
	dataSet []string
	deleted []string
	added   []domain.Chunk
}

func (f *fakeRetriever) GetRelevant(ctx context.Context, queryText string, queryVec []float32, datasets []string, k int) (domain.RetrievalResult, error) {
	return f.result, nil
}
func (f *fakeRetriever) Add(ctx context.Context, chunks []domain.Chunk) error {
	f.added = append(f.added, chunks...)
	return nil
}
func (f *fakeRetriever) GetAllDocumentNames(ctx context.Context) ([]string, error) { return f.docs, nil }
func (f *fakeRetriever) GetDatasets(ctx context.Context) ([]string, error)         { return f.dataSet, nil }
func (f *fakeRetriever) Delete(ctx context.Context, paths []string) (int, error) {
	f.deleted = append(f.deleted, paths...)
	return len(paths), nil
}

func newTestServer(t *testing.T, values map[string]string, retriever *fakeRetriever) *Server {
	t.Helper()
	dir := t.TempDir()
	if values["data_directory"] == "" {
		values["data_directory"] = dir
	}
	path := dir + "/options.env"
	var sb strings.Builder
	for k, v := range values {
		fmt.Fprintf(&sb, "%s=%s\n", k, v)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	store, err := config.Open(path)
	require.NoError(t, err)

	s := &Server{store: store, retriever: retriever, log: zerolog.Nop()}
	s.comps = components{
		embedder: fakeEmbedder{},
		gateway:  llmgateway.New(&scriptedBackend{reply: "a reply"}, 0),
	}
	return s
}

func TestHandleChatReturnsAnswerWithDocuments(t *testing.T) {
	retriever := &fakeRetriever{result: domain.RetrievalResult{{Chunk: domain.Chunk{ID: "a", Text: "X is the answer", Metadata: domain.Metadata{SourcePath: "a.txt"}}}}}
	s := newTestServer(t, map[string]string{}, retriever)

	body, _ := json.Marshal(chatRequestBody{Prompt: "What is X?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.FetchedNewDocuments)
	require.Len(t, resp.Documents, 1)
	require.Equal(t, "What is X?", resp.Question)
}

func TestHandleChatMissingPromptIsBadRequest(t *testing.T) {
	s := newTestServer(t, map[string]string{}, &fakeRetriever{})
	body, _ := json.Marshal(chatRequestBody{})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetDocumentsAndDatasets(t *testing.T) {
	retriever := &fakeRetriever{docs: []string{"a.txt", "b.txt"}, dataSet: []string{"manuals"}}
	s := newTestServer(t, map[string]string{}, retriever)

	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "a.txt")

	rec2 := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/get_datasets", nil))
	require.Contains(t, rec2.Body.String(), "manuals")
}

func TestHandleGetDocumentMissingFileReturns404(t *testing.T) {
	s := newTestServer(t, map[string]string{}, &fakeRetriever{})
	body, _ := json.Marshal(filenameRequest{Filename: "missing.txt"})
	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/get_document", bytes.NewReader(body)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteRemovesFileAndRow(t *testing.T) {
	retriever := &fakeRetriever{}
	s := newTestServer(t, map[string]string{}, retriever)
	dataDir := s.dataDirectory()
	require.NoError(t, os.WriteFile(dataDir+"/doc.txt", []byte("hello"), 0o644))

	body, _ := json.Marshal(filenameRequest{Filename: "doc.txt"})
	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delete", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, retriever.deleted, 1)
	_, err := os.Stat(dataDir + "/doc.txt")
	require.True(t, os.IsNotExist(err))
}

func TestHandleAddDocumentIngestsUpload(t *testing.T) {
	retriever := &fakeRetriever{}
	s := newTestServer(t, map[string]string{"file_types": "txt"}, retriever)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("dataset", "manuals"))
	part, err := mw.CreateFormFile("file", "manual.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/add_document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, retriever.added, 1)
	require.Equal(t, "manuals", retriever.added[0].Metadata.Dataset)
}

func TestHandleConfigGetAndPut(t *testing.T) {
	s := newTestServer(t, map[string]string{"temperature": "0"}, &fakeRetriever{})

	rec := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Contains(t, rec.Body.String(), `"temperature":"0"`)

	body, _ := json.Marshal(putConfigRequest{Config: map[string]string{"temperature": "0.5"}})
	rec2 := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rec2, httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp putConfigResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, []string{"temperature"}, resp.Updated)
	require.Equal(t, "0.5", s.store.Current().String("temperature", ""))
}
