package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/sahay-ai/sahay/internal/api/middlewares"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/models"
)

type CategoryHandler struct {
	store core.Store
}

func NewCategoryHandler(store core.Store) *CategoryHandler {
	return &CategoryHandler{store: store}
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	org, ok := middleware.OrgFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	cat := &models.KnowledgeCategory{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		ExternalID:     uuid.NewString(),
		Name:           req.Name,
		CreatedAt:      time.Now(),
	}
	if err := h.store.CreateCategory(r.Context(), cat); err != nil {
		writePipelineError(w, "create category", errs.Persistence("create category", err))
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *CategoryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	org, ok := middleware.OrgFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	cats, err := h.store.ListCategories(r.Context(), org.ID)
	if err != nil {
		writePipelineError(w, "list categories", errs.Persistence("list categories", err))
		return
	}
	if cats == nil {
		cats = []models.KnowledgeCategory{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// DeleteCategory removes the category and, through the schema's cascade, the
// files and embeddings filed under it.
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	org, ok := middleware.OrgFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	externalID := chi.URLParam(r, "categoryID")
	cat, err := h.store.CategoryByExternalID(r.Context(), org.ID, externalID)
	if err != nil {
		writePipelineError(w, "resolve category", errs.Persistence("category lookup", err))
		return
	}
	if cat == nil {
		writeErrorJSON(w, http.StatusNotFound, "unknown category")
		return
	}

	if err := h.store.DeleteCategory(r.Context(), org.ID, cat.ExternalID); err != nil {
		writePipelineError(w, "delete category", errs.Persistence("delete category", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
