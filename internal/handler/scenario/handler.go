package scenario

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/scenario"
	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

// Handler 练习情景的HTTP处理器
type Handler struct {
	scenarios scenario.Store
}

// New 创建情景处理器
func New(scenarios scenario.Store) *Handler {
	return &Handler{scenarios: scenarios}
}

// RegisterRoutes 注册情景相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/scenarios", h.handleListScenarios)
}

// handleListScenarios 列出所有练习情景
func (h *Handler) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string][]string{
		"scenarios": h.scenarios.List(),
	})
}
