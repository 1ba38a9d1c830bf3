package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

// Store 是 handler 依赖的会话存储能力
type Store interface {
	Create(ctx context.Context) chat.Session
	Close(ctx context.Context, sessionID string) bool
}

// Handler 会话的HTTP处理器
type Handler struct {
	sessions Store
}

// New 创建会话处理器
func New(sessions Store) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
}

// handleCreateSession 创建会话，请求体可以为空
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create(r.Context())
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"sessionId": session.ID})
}

// handleCloseSession 主动关闭会话
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if !h.sessions.Close(r.Context(), sessionID) {
		utils.RespondError(w, http.StatusNotFound, utils.ErrCodeNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
