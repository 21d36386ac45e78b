package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// TablesResponse for GET /api/tables
type TablesResponse struct {
	Tables []services.TableInfo `json:"tables"`
	Count  int                  `json:"count"`
}

// TablesHandler lists the tables of the configured database.
type TablesHandler struct {
	tables services.TableService
	logger *zap.Logger
}

// NewTablesHandler creates a new tables handler.
func NewTablesHandler(tables services.TableService, logger *zap.Logger) *TablesHandler {
	return &TablesHandler{tables: tables, logger: logger}
}

// RegisterRoutes registers the tables routes on the given mux.
func (h *TablesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tables", h.List)
}

// List handles GET /api/tables.
func (h *TablesHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.Tables(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "獲取表格列表時發生錯誤")
		return
	}
	if tables == nil {
		tables = []services.TableInfo{}
	}
	writeJSON(w, h.logger, http.StatusOK, TablesResponse{Tables: tables, Count: len(tables)})
}
