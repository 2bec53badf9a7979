package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/sahay-ai/sahay/internal/core/errs"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps an internal error onto the caller-visible taxonomy.
// Validation details are narrow enough to share; everything else logs the
// cause and returns a generic failure.
func writePipelineError(w http.ResponseWriter, op string, err error) {
	if errs.IsValidation(err) {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("%s failed: %v", op, err)
	writeErrorJSON(w, http.StatusInternalServerError, "something went wrong")
}
