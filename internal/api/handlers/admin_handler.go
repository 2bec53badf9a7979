package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/models"
)

const adminTokenTTL = 24 * time.Hour

type AdminHandler struct {
	store     core.Store
	jwtSecret string
}

func NewAdminHandler(store core.Store, jwtSecret string) *AdminHandler {
	return &AdminHandler{store: store, jwtSecret: jwtSecret}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AdminHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeErrorJSON(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writePipelineError(w, "hash password", err)
		return
	}

	admin := &models.Admin{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		writeErrorJSON(w, http.StatusConflict, "admin exists")
		return
	}

	token, err := h.generateJWT(admin.ID)
	if err != nil {
		writePipelineError(w, "sign token", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := h.store.AdminByEmail(r.Context(), req.Email)
	if err != nil || admin == nil ||
		bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateJWT(admin.ID)
	if err != nil {
		writePipelineError(w, "sign token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AdminHandler) generateJWT(adminID string) (string, error) {
	claims := jwt.MapClaims{
		"admin_id": adminID,
		"exp":      time.Now().Add(adminTokenTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(h.jwtSecret))
}

type createOrganizationRequest struct {
	Name             string            `json:"name"`
	SystemPrompt     string            `json:"system_prompt"`
	ExamplesText     string            `json:"examples_text"`
	EvaluatorPrompts map[string]string `json:"evaluator_prompts"`
	ModelAPIKey      string            `json:"model_api_key"`
}

// CreateOrganization provisions a tenant and mints its API key. The key is
// returned once here; clients present it on every tenant-scoped call.
func (h *AdminHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorJSON(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.EvaluatorPrompts == nil {
		req.EvaluatorPrompts = map[string]string{}
	}

	org := &models.Organization{
		ID:               uuid.NewString(),
		Name:             req.Name,
		APIKey:           uuid.NewString(),
		SystemPrompt:     req.SystemPrompt,
		ExamplesText:     req.ExamplesText,
		EvaluatorPrompts: req.EvaluatorPrompts,
		ModelAPIKey:      req.ModelAPIKey,
		CreatedAt:        time.Now(),
	}
	if err := h.store.CreateOrganization(r.Context(), org); err != nil {
		writePipelineError(w, "create organization", errs.Persistence("create organization", err))
		return
	}

	// The API key serializes nowhere else; this response is its one showing.
	writeJSON(w, http.StatusCreated, struct {
		*models.Organization
		APIKey string `json:"api_key"`
	}{org, org.APIKey})
}

func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		writePipelineError(w, "list organizations", errs.Persistence("list organizations", err))
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

type updatePromptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

func (h *AdminHandler) UpdateSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.updateOrg(w, r, func(orgID string) error {
		return h.store.UpdateOrganizationSystemPrompt(r.Context(), orgID, req.SystemPrompt)
	})
}

type updateExamplesRequest struct {
	ExamplesText string `json:"examples_text"`
}

func (h *AdminHandler) UpdateExamples(w http.ResponseWriter, r *http.Request) {
	var req updateExamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.updateOrg(w, r, func(orgID string) error {
		return h.store.UpdateOrganizationExamples(r.Context(), orgID, req.ExamplesText)
	})
}

type updateEvaluatorsRequest struct {
	EvaluatorPrompts map[string]string `json:"evaluator_prompts"`
}

func (h *AdminHandler) UpdateEvaluators(w http.ResponseWriter, r *http.Request) {
	var req updateEvaluatorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EvaluatorPrompts == nil {
		req.EvaluatorPrompts = map[string]string{}
	}
	h.updateOrg(w, r, func(orgID string) error {
		return h.store.UpdateOrganizationEvaluators(r.Context(), orgID, req.EvaluatorPrompts)
	})
}

type updateModelKeyRequest struct {
	ModelAPIKey string `json:"model_api_key"`
}

func (h *AdminHandler) UpdateModelKey(w http.ResponseWriter, r *http.Request) {
	var req updateModelKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.updateOrg(w, r, func(orgID string) error {
		return h.store.UpdateOrganizationModelKey(r.Context(), orgID, req.ModelAPIKey)
	})
}

// RotateAPIKey replaces the tenant's API key. The old key stops working as
// soon as the update lands.
func (h *AdminHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	apiKey := uuid.NewString()
	if err := h.store.UpdateOrganizationAPIKey(r.Context(), orgID, apiKey); err != nil {
		writeErrorJSON(w, http.StatusNotFound, "unknown organization")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": apiKey})
}

func (h *AdminHandler) updateOrg(w http.ResponseWriter, r *http.Request, apply func(orgID string) error) {
	orgID := chi.URLParam(r, "orgID")
	if err := apply(orgID); err != nil {
		writeErrorJSON(w, http.StatusNotFound, "unknown organization")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
