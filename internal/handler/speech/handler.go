package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	speechsvc "github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

// Transcriber 抽象语音识别，便于测试与替换实现
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID, audioData, language string) (speechsvc.Transcript, error)
}

// Handler 语音识别的HTTP处理器
type Handler struct {
	transcriber Transcriber
}

// New 创建语音处理器
func New(transcriber Transcriber) *Handler {
	return &Handler{transcriber: transcriber}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech-to-text", h.handleSpeechToText)
}

type speechToTextRequest struct {
	AudioData string `json:"audioData"`
	Language  string `json:"language"`
	SessionID string `json:"sessionId"`
}

type speechToTextResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
	Error      string  `json:"error,omitempty"`
}

// handleSpeechToText 处理语音转文本请求，识别失败时返回占位转写
func (h *Handler) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	var payload speechToTextRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.AudioData) == "" {
		utils.RespondError(w, http.StatusBadRequest, utils.ErrCodeInvalidRequest, "audioData is required")
		return
	}

	transcript, err := h.transcriber.Transcribe(r.Context(), payload.SessionID, payload.AudioData, payload.Language)
	if err != nil {
		if errors.Is(err, speechsvc.ErrInvalidDataURI) || errors.Is(err, speechsvc.ErrEmptyAudio) {
			utils.RespondError(w, http.StatusBadRequest, utils.ErrCodeInvalidRequest, err.Error())
			return
		}
		log.Printf("[asr] speech-to-text failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, utils.ErrCodeInternal, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, speechToTextResponse{
		Transcript: transcript.Text,
		Confidence: transcript.Confidence,
		Provider:   transcript.Provider,
		Error:      transcript.Error,
	})
}
