package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/core/tokens"
	"github.com/sahay-ai/sahay/internal/models"
)

type fakeExtractor struct {
	pages []string
}

func (f *fakeExtractor) ExtractText(ctx context.Context, g *errgroup.Group, _ []byte, _ string) (<-chan string, error) {
	out := make(chan string, len(f.pages))
	g.Go(func() error {
		defer close(out)
		for _, p := range f.pages {
			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	return out, nil
}

// dimByPage returns a vector of a different length per call index.
type fakeEmbedder struct {
	dims  []int
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.dims[f.calls%len(f.dims)]
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

type fakeEmbeddingStore struct {
	inserted []models.Embedding
}

func (f *fakeEmbeddingStore) InsertEmbedding(_ context.Context, emb *models.Embedding) error {
	f.inserted = append(f.inserted, *emb)
	return nil
}

func testFile() *models.File {
	return &models.File{
		ID:             "file-1",
		OrganizationID: "org-a",
		ExternalID:     "ext-1",
		Name:           "hydration.pdf",
	}
}

func TestIngestFile(t *testing.T) {
	store := &fakeEmbeddingStore{}
	ing := NewPageIngestor(store, &fakeEmbedder{dims: []int{1536}}, &fakeExtractor{pages: []string{"page one", "page two"}}, tokens.NewCounter(), "text-embedding-ada-002", 1536)

	n, err := ing.IngestFile(context.Background(), testFile(), []byte("raw"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.inserted, 2)

	first := store.inserted[0]
	assert.Equal(t, "org-a", first.OrganizationID)
	assert.Equal(t, "file-1", first.FileID)
	assert.Equal(t, "hydration.pdf", first.DocumentName)
	assert.Equal(t, "page one", first.Text)
	assert.Len(t, first.Vector, 1536)
	assert.Greater(t, first.TokenCount, 0)
}

func TestIngestFile_DimensionalityGuard(t *testing.T) {
	store := &fakeEmbeddingStore{}
	// First page embeds at the right dimensionality, second does not.
	embedder := &fakeEmbedder{dims: []int{1536, 768}}
	ing := NewPageIngestor(store, embedder, &fakeExtractor{pages: []string{"page one", "page two", "page three"}}, tokens.NewCounter(), "text-embedding-ada-002", 1536)

	n, err := ing.IngestFile(context.Background(), testFile(), []byte("raw"), "application/pdf")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	// The page stored before the failure stays stored; later pages are not.
	assert.Equal(t, 1, n)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "page one", store.inserted[0].Text)
}
