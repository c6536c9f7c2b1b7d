// Package handlers implements the HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"studylm/internal/contextutil"
	"studylm/internal/llm"
	"studylm/internal/llmjson"
	"studylm/internal/rag"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
)

// ErrorResponse is the error payload shape for every endpoint.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Detail: message})
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleDomainError maps domain errors onto HTTP status codes.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(r.Context())

	var malformed *llmjson.MalformedError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Notebook not found")
	case errors.Is(err, retrieve.ErrNoSourcesReady):
		writeError(w, http.StatusNotFound, "No indexed sources ready")
	case errors.Is(err, rag.ErrNoSources):
		writeError(w, http.StatusBadRequest, "Notebook has no sources")
	case errors.Is(err, rag.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "Invalid kind")
	case errors.Is(err, rag.ErrModelNotAllowed):
		writeError(w, http.StatusBadRequest, "Requested chat model is not allowed")
	case errors.Is(err, llm.ErrMissingAPIKey):
		logger.ErrorContext(r.Context(), "api key not configured", "error", err)
		writeError(w, http.StatusInternalServerError, "Server missing OPENAI_API_KEY")
	case errors.As(err, &malformed):
		logger.ErrorContext(r.Context(), "model returned malformed json", "error", err)
		writeError(w, http.StatusBadGateway, "Model did not return valid JSON")
	case errors.Is(err, llm.ErrUpstream):
		logger.ErrorContext(r.Context(), "upstream llm error", "error", err)
		writeError(w, http.StatusBadGateway, "LLM error: "+err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}
