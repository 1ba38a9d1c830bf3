package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/analysis/colloquial"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/ai"
)

// 反馈来源
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
	SourceMock      = "mock"
)

// hintLimit 限制启发式反馈里列出的替换数量。
const hintLimit = 3

// Result 表示对学生一句话的点评。
type Result struct {
	Text        string
	Corrections []colloquial.Correction
	Source      string
}

// Fallback 在没有更好点评时提供固定鼓励语。
type Fallback interface {
	Feedback(userText string) string
}

// Service 优先使用大模型点评，失败时回退到口语化规则或固定短语。
type Service struct {
	critic   ai.Client
	fallback Fallback
}

// NewService 创建点评服务。critic 为 nil 表示不调用大模型。
func NewService(critic ai.Client, fallback Fallback) *Service {
	return &Service{critic: critic, fallback: fallback}
}

// Enabled 返回是否启用大模型点评。
func (s *Service) Enabled() bool {
	return s != nil && s.critic != nil
}

// Evaluate 点评学生发言。不返回错误，所有失败都在内部回退。
func (s *Service) Evaluate(ctx context.Context, userText, scenario string) Result {
	userText = strings.TrimSpace(userText)
	corrections := colloquial.Analyze(userText)

	if userText == "" || !s.Enabled() {
		return s.fallbackResult(userText, corrections)
	}

	content, err := s.critic.Generate(ctx, ai.BuildFeedbackMessages(userText, scenario))
	if err != nil {
		log.Printf("[feedback] critique via %s failed, use fallback: %v", s.critic.Name(), err)
		return s.fallbackResult(userText, corrections)
	}

	text, err := parseCritique(content)
	if err != nil {
		log.Printf("[feedback] critique output parse failed, use fallback: %v", err)
		return s.fallbackResult(userText, corrections)
	}

	return Result{Text: text, Corrections: corrections, Source: SourceLLM}
}

func (s *Service) fallbackResult(userText string, corrections []colloquial.Correction) Result {
	if hint := colloquial.Hint(corrections, hintLimit); hint != "" {
		return Result{Text: hint, Corrections: corrections, Source: SourceHeuristic}
	}
	return Result{Text: s.fallback.Feedback(userText), Corrections: corrections, Source: SourceMock}
}

// parseCritique 从模型输出中截取 JSON 对象并读取 feedback 字段。
func parseCritique(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("missing json object")
	}

	payload := &critiquePayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return "", err
	}

	text := strings.TrimSpace(payload.Feedback)
	if text == "" {
		return "", fmt.Errorf("empty feedback field")
	}
	return text, nil
}

type critiquePayload struct {
	Feedback string `json:"feedback"`
}
