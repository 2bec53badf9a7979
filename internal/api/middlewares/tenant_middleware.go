package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/models"
)

type contextKey string

const orgContextKey contextKey = "organization"

// TenantAuth resolves the Authorization header to an organization and
// attaches it to the request context. A missing, malformed or unknown key all
// produce the same not-found response so nothing about the credential leaks.
func TenantAuth(store core.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("Authorization")
			if apiKey == "" {
				writeAuthFailure(w)
				return
			}

			org, err := store.OrganizationByAPIKey(r.Context(), apiKey)
			if err != nil || org == nil {
				writeAuthFailure(w)
				return
			}

			ctx := context.WithValue(r.Context(), orgContextKey, org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgFromContext returns the organization attached by TenantAuth.
func OrgFromContext(ctx context.Context) (*models.Organization, bool) {
	org, ok := ctx.Value(orgContextKey).(*models.Organization)
	return org, ok
}

func writeAuthFailure(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid API key"})
}
