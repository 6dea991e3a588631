package server

import (
	"encoding/json"
	"net/http"

	"lista-precios/internal/pricing"
)

// Error kinds surfaced to the admin UI.
const (
	errInvalidJSON     = "invalid_json"
	errValidation      = "validation_error"
	errDuplicateRule   = "duplicate_rule"
	errOverlappingRule = "overlapping_rule"
	errNotFound        = "not_found"
	errPersistence     = "persistence_error"
)

type errorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	// Conflict carries the existing rule a rejected candidate collided
	// with, so the UI can point at it.
	Conflict *pricing.ProfitRule `json:"conflict,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func writeRuleConflict(w http.ResponseWriter, kind, message string, conflict pricing.ProfitRule) {
	writeJSON(w, http.StatusConflict, errorResponse{Error: kind, Message: message, Conflict: &conflict})
}
