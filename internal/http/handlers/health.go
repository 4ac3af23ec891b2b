package handlers

import "net/http"

// HealthHandler serves liveness and root status endpoints.
type HealthHandler struct {
	serviceName string
	version     string
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(serviceName, version string) *HealthHandler {
	if serviceName == "" {
		serviceName = "scheduling-agent"
	}
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{serviceName: serviceName, version: version}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Root handles GET / with a short service banner.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": h.serviceName,
		"version": h.version,
		"status":  "running",
	})
}
