package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// CreateConversationRequest for POST /api/conversations
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest for PUT /api/conversations/{id}
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// AddMessageRequest for POST /api/conversations/{id}/messages
type AddMessageRequest struct {
	Role    models.MessageRole `json:"role"`
	Content string             `json:"content"`
}

// ConversationListResponse for GET /api/conversations
type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	Count         int                   `json:"count"`
}

// MessageListResponse for GET /api/conversations/{id}/messages
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// ConversationsHandler manages conversation transcripts.
type ConversationsHandler struct {
	conversations services.ConversationService
	logger        *zap.Logger
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(conversations services.ConversationService, logger *zap.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// RegisterRoutes registers the conversation routes on the given mux.
func (h *ConversationsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/conversations"
	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{id}", h.Get)
	mux.HandleFunc("PUT "+base+"/{id}", h.UpdateTitle)
	mux.HandleFunc("DELETE "+base+"/{id}", h.Delete)
	mux.HandleFunc("POST "+base+"/{id}/messages", h.AddMessage)
	mux.HandleFunc("GET "+base+"/{id}/messages", h.Messages)
	mux.HandleFunc("DELETE "+base+"/{id}/messages", h.ClearMessages)
}

// Create handles POST /api/conversations. The body is optional.
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.logger, &req) {
		return
	}

	conv, err := h.conversations.Create(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, h.logger, err, "創建對話時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, conv)
}

// List handles GET /api/conversations, most recently updated first.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	convs, err := h.conversations.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, "獲取對話列表時發生錯誤")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSON(w, h.logger, http.StatusOK, ConversationListResponse{Conversations: convs, Count: len(convs)})
}

// Get handles GET /api/conversations/{id}.
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		h.writeConversationError(w, err, id, "獲取對話詳情時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

// UpdateTitle handles PUT /api/conversations/{id}.
func (h *ConversationsHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req UpdateConversationRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	conv, err := h.conversations.UpdateTitle(r.Context(), id, req.Title)
	if err != nil {
		h.writeConversationError(w, err, id, "更新對話時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, conv)
}

// Delete handles DELETE /api/conversations/{id}.
func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.conversations.Delete(r.Context(), id); err != nil {
		h.writeConversationError(w, err, id, "刪除對話時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SuccessResponse{Success: true, Message: "對話已刪除"})
}

// AddMessage handles POST /api/conversations/{id}/messages.
func (h *ConversationsHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req AddMessageRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	msg, err := h.conversations.AddMessage(r.Context(), id, req.Role, req.Content)
	if err != nil {
		h.writeConversationError(w, err, id, "添加消息時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, msg)
}

// Messages handles GET /api/conversations/{id}/messages.
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, offset := parsePage(r)
	msgs, err := h.conversations.Messages(r.Context(), id, limit, offset)
	if err != nil {
		h.writeConversationError(w, err, id, "獲取消息列表時發生錯誤")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, h.logger, http.StatusOK, MessageListResponse{Messages: msgs, Count: len(msgs)})
}

// ClearMessages handles DELETE /api/conversations/{id}/messages.
func (h *ConversationsHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.conversations.ClearMessages(r.Context(), id); err != nil {
		h.writeConversationError(w, err, id, "清空消息時發生錯誤")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SuccessResponse{Success: true, Message: "消息已清空"})
}

func (h *ConversationsHandler) writeConversationError(w http.ResponseWriter, err error, id, action string) {
	if isNotFound(err) {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "對話 "+id+" 不存在")
		return
	}
	writeServiceError(w, h.logger, err, action)
}
