package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// DatabaseQuestionsRequest for POST /api/database/questions
type DatabaseQuestionsRequest struct {
	ConnectionString string `json:"connection_string"`
}

// DatabaseHandler profiles databases the caller points at.
type DatabaseHandler struct {
	profiles services.DatabaseProfileService
	logger   *zap.Logger
}

// NewDatabaseHandler creates a new database handler.
func NewDatabaseHandler(profiles services.DatabaseProfileService, logger *zap.Logger) *DatabaseHandler {
	return &DatabaseHandler{profiles: profiles, logger: logger}
}

// RegisterRoutes registers the database routes on the given mux.
func (h *DatabaseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/database/questions", h.Questions)
}

// Questions handles POST /api/database/questions.
func (h *DatabaseHandler) Questions(w http.ResponseWriter, r *http.Request) {
	var req DatabaseQuestionsRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if strings.TrimSpace(req.ConnectionString) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_connection_string", "connection_string is required")
		return
	}

	result, err := h.profiles.Questions(r.Context(), req.ConnectionString)
	if err != nil {
		writeServiceError(w, h.logger, err, "分析資料庫時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}
