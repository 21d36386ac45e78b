package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// TrainingDataResponse for GET /api/training-data
type TrainingDataResponse struct {
	TrainingData []models.TrainingItem `json:"training_data"`
	Count        int                   `json:"count"`
}

// TrainingHandler adds and lists generator training data.
type TrainingHandler struct {
	training services.TrainingService
	logger   *zap.Logger
}

// NewTrainingHandler creates a new training handler.
func NewTrainingHandler(training services.TrainingService, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{training: training, logger: logger}
}

// RegisterRoutes registers the training routes on the given mux.
func (h *TrainingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/train", h.Train)
	mux.HandleFunc("GET /api/training-data", h.TrainingData)
}

// Train handles POST /api/train.
func (h *TrainingHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req services.TrainRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	resp, err := h.training.Train(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "訓練時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// TrainingData handles GET /api/training-data.
func (h *TrainingHandler) TrainingData(w http.ResponseWriter, r *http.Request) {
	items, err := h.training.TrainingData(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "獲取訓練資料時發生錯誤")
		return
	}
	if items == nil {
		items = []models.TrainingItem{}
	}
	writeJSON(w, h.logger, http.StatusOK, TrainingDataResponse{TrainingData: items, Count: len(items)})
}
