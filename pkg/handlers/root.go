package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// WelcomeResponse is served at the root path.
type WelcomeResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
	Health  string `json:"health"`
}

// RootHandler serves the welcome document.
type RootHandler struct {
	version string
	logger  *zap.Logger
}

func NewRootHandler(version string, logger *zap.Logger) *RootHandler {
	return &RootHandler{version: version, logger: logger}
}

func (h *RootHandler) RegisterRoutes(mux *http.ServeMux) {
	// "GET /{$}" matches only the root, not every unmatched path.
	mux.HandleFunc("GET /{$}", h.Welcome)
}

// Welcome handles GET /.
func (h *RootHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, WelcomeResponse{
		Message: "歡迎使用 Vanna AI Chatbot API",
		Version: h.version,
		Docs:    "/docs",
		Health:  "/api/health",
	})
}
