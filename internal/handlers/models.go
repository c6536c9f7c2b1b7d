package handlers

import (
	"net/http"

	"studylm/internal/config"
)

// ModelsHandler reports the configured chat and embedding models.
type ModelsHandler struct {
	cfg *config.Config
}

// NewModelsHandler creates a new ModelsHandler.
func NewModelsHandler(cfg *config.Config) *ModelsHandler {
	return &ModelsHandler{cfg: cfg}
}

// ServeHTTP handles GET /models.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chat": map[string]any{
			"allowed": h.cfg.ChatModelsAllowed,
			"default": h.cfg.ChatModel,
		},
		"embedding": h.cfg.EmbeddingModel,
	})
}
