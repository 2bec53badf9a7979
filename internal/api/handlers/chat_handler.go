package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	middleware "github.com/sahay-ai/sahay/internal/api/middlewares"
	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/chat"
)

// answerer lets tests stand in for the full pipeline.
type answerer interface {
	Answer(ctx context.Context, req chat.AnswerRequest) (*chat.AnswerResponse, error)
}

type ChatHandler struct {
	pipeline answerer
	store    core.Store
}

func NewChatHandler(pipeline answerer, store core.Store) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, store: store}
}

type chatRequest struct {
	Question   string `json:"question"`
	SessionID  string `json:"session_id"`
	Model      string `json:"model"`
	CategoryID string `json:"category_id"` // category external id
	Evaluate   bool   `json:"evaluate"`
}

// Ask runs one answer cycle for the authenticated tenant.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	org, ok := middleware.OrgFromContext(ctx)
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "Invalid API key")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeErrorJSON(w, http.StatusBadRequest, "question is required")
		return
	}

	categoryID := ""
	if req.CategoryID != "" {
		cat, err := h.store.CategoryByExternalID(ctx, org.ID, req.CategoryID)
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

	resp, err := h.pipeline.Answer(ctx, chat.AnswerRequest{
		Org:        org,
		Question:   req.Question,
		SessionID:  req.SessionID,
		Model:      req.Model,
		CategoryID: categoryID,
		Evaluate:   req.Evaluate,
	})
	if err != nil {
		writePipelineError(w, "answer pipeline", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
