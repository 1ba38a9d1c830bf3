package tutor

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	tutorsvc "github.com/zhouzirui/cantonese-tutor/backend/internal/service/tutor"
	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

// Responder 抽象一次对话交换
type Responder interface {
	Respond(ctx context.Context, req tutorsvc.Request) (*tutorsvc.Result, error)
}

// Handler 对话交换的HTTP处理器
type Handler struct {
	tutor Responder
}

// New 创建对话处理器
func New(tutor Responder) *Handler {
	return &Handler{tutor: tutor}
}

// RegisterRoutes 注册对话交换路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/recognize-and-respond", h.handleRecognizeAndRespond)
}

type exchangeRequest struct {
	SessionID string `json:"sessionId"`
	UserText  string `json:"userText"`
	Scenario  string `json:"scenario"`
}

func (h *Handler) handleRecognizeAndRespond(w http.ResponseWriter, r *http.Request) {
	var payload exchangeRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	result, err := h.tutor.Respond(r.Context(), tutorsvc.Request{
		SessionID: payload.SessionID,
		UserText:  payload.UserText,
		Scenario:  payload.Scenario,
	})
	if err != nil {
		if errors.Is(err, tutorsvc.ErrSessionIDRequired) {
			utils.RespondError(w, http.StatusBadRequest, utils.ErrCodeInvalidRequest, err.Error())
			return
		}
		log.Printf("[tutor] exchange failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Server error, please try again.")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
