package ingestion_engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/core/tokens"
	"github.com/sahay-ai/sahay/internal/models"
)

const ingestTimeout = 5 * time.Minute

// embeddingStore is the slice of persistence ingestion needs.
type embeddingStore interface {
	InsertEmbedding(ctx context.Context, emb *models.Embedding) error
}

// PageIngestor embeds and persists a document's extracted pages one at a
// time, within the upload request. A failure partway aborts the remaining
// pages without rolling back pages already stored, so partial ingestion is
// possible and observable through the returned count.
type PageIngestor struct {
	store      embeddingStore
	embedder   core.EmbeddingProvider
	extractor  core.DocumentExtractor
	counter    *tokens.Counter
	embedModel string
	embedDim   int
}

// NewPageIngestor wires the ingestion path. embedDim is the dimensionality
// every stored vector must match.
func NewPageIngestor(store embeddingStore, embedder core.EmbeddingProvider, extractor core.DocumentExtractor, counter *tokens.Counter, embedModel string, embedDim int) *PageIngestor {
	return &PageIngestor{
		store:      store,
		embedder:   embedder,
		extractor:  extractor,
		counter:    counter,
		embedModel: embedModel,
		embedDim:   embedDim,
	}
}

// IngestFile extracts the document's pages and stores one Embedding per
// page. Returns how many pages were stored, alongside the first error.
func (i *PageIngestor) IngestFile(ctx context.Context, file *models.File, data []byte, contentType string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	pages, err := i.extractor.ExtractText(gctx, g, data, contentType)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for page := range pages {
		if err := i.ingestPage(gctx, file, page); err != nil {
			cancel()
			_ = g.Wait()
			return ingested, err
		}
		ingested++
	}

	if err := g.Wait(); err != nil {
		return ingested, err
	}

	log.Printf("ingestion: file=%s pages=%d", file.ExternalID, ingested)
	return ingested, nil
}

func (i *PageIngestor) ingestPage(ctx context.Context, file *models.File, text string) error {
	vecs, err := i.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return errs.Upstream("embed page", err)
	}
	if len(vecs) != 1 {
		return errs.Upstream("embed page", fmt.Errorf("got %d vectors for one page", len(vecs)))
	}
	if len(vecs[0]) != i.embedDim {
		return errs.Validation("embedding dimensionality %d does not match expected %d", len(vecs[0]), i.embedDim)
	}

	emb := &models.Embedding{
		ID:             uuid.NewString(),
		OrganizationID: file.OrganizationID,
		FileID:         file.ID,
		DocumentName:   file.Name,
		Text:           text,
		Vector:         vecs[0],
		TokenCount:     i.counter.Count(text, i.embedModel),
	}
	if err := i.store.InsertEmbedding(ctx, emb); err != nil {
		return errs.Persistence("insert embedding", err)
	}
	return nil
}
