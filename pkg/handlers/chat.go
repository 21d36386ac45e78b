package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// ChatHandler streams answers over Server-Sent Events.
type ChatHandler struct {
	chatService services.ChatService
	logger      *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat. Frames are written as `data: <json>` lines and
// the stream always ends with `data: [DONE]`.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req services.ChatRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_question", "Question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		writeError(w, h.logger, http.StatusInternalServerError, "sse_unsupported", "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.logger.Info("Question received",
		zap.String("question", req.Question),
		zap.String("conversation_id", req.ConversationID))

	eventChan := make(chan models.StreamEvent, 100)
	ctx := audit.WithClientIP(r.Context(), r.RemoteAddr)

	go func() {
		defer close(eventChan)
		err := h.chatService.Stream(ctx, req, eventChan)
		switch {
		case err == nil:
		case r.Context().Err() != nil:
			h.logger.Debug("Client disconnected during chat", zap.Error(err))
		case errors.Is(err, apperrors.ErrInvalidInput):
			eventChan <- models.NewErrorEvent(err.Error())
		default:
			h.logger.Error("Chat stream failed", zap.Error(err))
			msg := fmt.Sprintf("處理請求時發生錯誤: %v", err)
			eventChan <- models.NewStatusEvent(models.StatusError, msg)
			eventChan <- models.NewErrorEvent(msg)
		}
	}()

	// Drain every frame so the producer never blocks; frames after an error
	// (suggestions) are still forwarded.
	for event := range eventChan {
		data, err := marshalEvent(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: %s\n\n", models.StreamTerminator)
	flusher.Flush()
}

func marshalEvent(event models.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
