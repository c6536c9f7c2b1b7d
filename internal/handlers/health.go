package handlers

import "net/http"

// HealthHandler answers internal health checks. When a token is configured
// the X-Internal header must match it; mismatches get a 404 so the endpoint
// stays invisible from outside.
type HealthHandler struct {
	token string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(token string) *HealthHandler {
	return &HealthHandler{token: token}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("X-Internal") != h.token {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
