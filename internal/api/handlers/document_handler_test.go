package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	middleware "github.com/sahay-ai/sahay/internal/api/middlewares"
	"github.com/sahay-ai/sahay/internal/config"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/core/ingestion_engine"
	"github.com/sahay-ai/sahay/internal/core/tokens"
	"github.com/sahay-ai/sahay/internal/models"
)

func (s *stubStore) CreateFile(ctx context.Context, file *models.File) error {
	s.files = append(s.files, *file)
	return nil
}

func (s *stubStore) ListFiles(ctx context.Context, orgID string) ([]models.File, error) {
	return s.files, nil
}

func (s *stubStore) InsertEmbedding(ctx context.Context, emb *models.Embedding) error {
	return nil
}

type stubObjectClient struct {
	keys []string
}

func (s *stubObjectClient) UploadFile(ctx context.Context, bucket, key string, r io.Reader, contentType string) (string, error) {
	s.keys = append(s.keys, key)
	return "https://example.com/" + key, nil
}

func (s *stubObjectClient) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, nil
}

func (s *stubObjectClient) DeleteFile(ctx context.Context, bucket, key string) error {
	return nil
}

type stubExtractor struct {
	sections []string
}

func (s *stubExtractor) ExtractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) (<-chan string, error) {
	if contentType != "text/plain" {
		return nil, errs.Validation("unsupported file type: %s", contentType)
	}
	out := make(chan string, len(s.sections))
	g.Go(func() error {
		defer close(out)
		for _, sec := range s.sections {
			out <- sec
		}
		return nil
	})
	return out, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

func uploadRequest(t *testing.T, apiKey, filename, contentType, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newDocumentHandler(store *stubStore, obj *stubObjectClient) *DocumentHandler {
	ingestor := ingestion_engine.NewPageIngestor(
		store,
		stubEmbedder{},
		&stubExtractor{sections: []string{"first section", "second section"}},
		tokens.NewCounter(),
		"test-embed-model",
		2,
	)
	return NewDocumentHandler(store, obj, ingestor, &config.Config{BucketName: "sahay-docs"})
}

func TestUploadDocument_Success(t *testing.T) {
	store := chatTestStore()
	obj := &stubObjectClient{}
	h := newDocumentHandler(store, obj)
	handler := middleware.TenantAuth(store)(http.HandlerFunc(h.UploadDocument))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "key-1", "notes.txt", "text/plain", "hello"))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.File)
	assert.Equal(t, "notes.txt", resp.File.Name)
	assert.Equal(t, "org-1", resp.File.OrganizationID)
	assert.Equal(t, 2, resp.PagesIngested)
	assert.Empty(t, resp.Error)

	require.Len(t, store.files, 1)
	require.Len(t, obj.keys, 1)
	assert.Contains(t, obj.keys[0], "org-1/")
	assert.Contains(t, obj.keys[0], "notes.txt")
}

func TestUploadDocument_UnsupportedType(t *testing.T) {
	store := chatTestStore()
	obj := &stubObjectClient{}
	h := newDocumentHandler(store, obj)
	handler := middleware.TenantAuth(store)(http.HandlerFunc(h.UploadDocument))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "key-1", "img.png", "image/png", "\x89PNG"))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The raw object and file row already exist; the response reports zero
	// ingested pages rather than pretending nothing happened.
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.PagesIngested)
	assert.NotEmpty(t, resp.Error)
}

func TestGetDocuments(t *testing.T) {
	store := chatTestStore()
	store.files = []models.File{{ID: "f1", OrganizationID: "org-1", Name: "notes.txt"}}
	h := newDocumentHandler(store, &stubObjectClient{})
	handler := middleware.TenantAuth(store)(http.HandlerFunc(h.GetDocuments))

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var files []models.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Name)
}
