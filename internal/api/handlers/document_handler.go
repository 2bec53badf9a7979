package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	middleware "github.com/sahay-ai/sahay/internal/api/middlewares"
	"github.com/sahay-ai/sahay/internal/config"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/core/ingestion_engine"
	"github.com/sahay-ai/sahay/internal/models"
)

type DocumentHandler struct {
	store        core.Store
	objectclient core.ObjectClient
	ingestor     *ingestion_engine.PageIngestor
	cfg          *config.Config
}

func NewDocumentHandler(store core.Store, objectclient core.ObjectClient, ing *ingestion_engine.PageIngestor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{store: store, objectclient: objectclient, ingestor: ing, cfg: cfg}
}

type uploadResponse struct {
	File          *models.File `json:"file"`
	PagesIngested int          `json:"pages_ingested"`
	Error         string       `json:"error,omitempty"`
}

// UploadDocument stores the raw document, then extracts, embeds and persists
// its pages one at a time within this request. A failure partway leaves the
// already-stored pages in place; the response reports how far it got.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	org, ok := middleware.OrgFromContext(ctx)
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer upload.Close()

	categoryID := ""
	if ext := r.FormValue("category_id"); ext != "" {
		cat, err := h.store.CategoryByExternalID(ctx, org.ID, ext)
		if err != nil {
			writePipelineError(w, "resolve category", err)
			return
		}
		if cat == nil {
			writeErrorJSON(w, http.StatusBadRequest, "unknown category")
			return
		}
		categoryID = cat.ID
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := io.ReadAll(upload)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "read upload")
		return
	}

	file := &models.File{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		CategoryID:     categoryID,
		ExternalID:     uuid.NewString(),
		Name:           filepath.Base(header.Filename),
		CreatedAt:      time.Now(),
	}

	key := fmt.Sprintf("%s/%s/%s", org.ID, file.ExternalID, file.Name)
	if _, err := h.objectclient.UploadFile(ctx, h.cfg.BucketName, key, bytes.NewReader(data), contentType); err != nil {
		writePipelineError(w, "store document", errs.Upstream("s3 upload", err))
		return
	}

	if err := h.store.CreateFile(ctx, file); err != nil {
		writePipelineError(w, "store document", errs.Persistence("create file", err))
		return
	}

	pages, err := h.ingestor.IngestFile(ctx, file, data, contentType)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "something went wrong"
		if errs.IsValidation(err) {
			status = http.StatusBadRequest
			msg = err.Error()
		}
		writeJSON(w, status, uploadResponse{File: file, PagesIngested: pages, Error: msg})
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{File: file, PagesIngested: pages})
}

// GetDocuments lists the tenant's files, optionally narrowed to one category
// via the category_id query parameter (external id).
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	org, ok := middleware.OrgFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	files, err := h.store.ListFiles(r.Context(), org.ID)
	if err != nil {
		writePipelineError(w, "list files", errs.Persistence("list files", err))
		return
	}

	if ext := r.URL.Query().Get("category_id"); ext != "" {
		cat, err := h.store.CategoryByExternalID(r.Context(), org.ID, ext)
		if err != nil {
			writePipelineError(w, "resolve category", err)
			return
		}
		if cat == nil {
			writeErrorJSON(w, http.StatusBadRequest, "unknown category")
			return
		}
		scoped := files[:0:0]
		for _, f := range files {
			if f.CategoryID == cat.ID {
				scoped = append(scoped, f)
			}
		}
		files = scoped
	}

	if files == nil {
		files = []models.File{}
	}
	writeJSON(w, http.StatusOK, files)
}
