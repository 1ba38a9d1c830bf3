package health

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

// Providers 报告当前生效的提供方名称。
type Providers interface {
	TTSProvider() string
	LLMProvider() string
}

// Response 健康检查响应
type Response struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Version     string `json:"version"`
	TTSProvider string `json:"ttsProvider"`
	LLMProvider string `json:"llmProvider"`
}

// Handler 健康检查处理器
type Handler struct {
	version   string
	providers Providers
	now       func() time.Time
}

// New 创建健康检查处理器
func New(version string, providers Providers) *Handler {
	return &Handler{version: version, providers: providers, now: time.Now}
}

// RegisterRoutes 注册健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, Response{
		Status:      "ok",
		Timestamp:   h.now().UnixMilli(),
		Version:     h.version,
		TTSProvider: h.providers.TTSProvider(),
		LLMProvider: h.providers.LLMProvider(),
	})
}
