package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
)

// TutorPrompt 描述导师人设与回复规则。
type TutorPrompt struct {
	Persona    string
	StyleRules []string
}

// DefaultTutorPrompt 返回内置的粤语导师设定。
func DefaultTutorPrompt() TutorPrompt {
	return TutorPrompt{
		Persona: "你係一位耐心、友善嘅廣東話導師，幫學生用香港粵語口語練習日常對話。",
		StyleRules: []string{
			"只用繁體中文書寫嘅香港粵語口語回覆，唔好用書面語或普通話句式",
			"每次回覆一至兩句，盡量簡短自然，方便讀出嚟",
			"回應學生講嘅內容，再問一條相關嘅跟進問題，令對話繼續落去",
			"學生講錯唔使即刻糾正，用正確講法自然咁重複一次",
			"唔好用表情符號、Markdown 或者拼音",
		},
	}
}

// BuildSystemPrompt 组合人设、情景与风格规则。
func (p TutorPrompt) BuildSystemPrompt(scenario string) string {
	var builder strings.Builder
	builder.WriteString(p.Persona)

	if scenario = strings.TrimSpace(scenario); scenario != "" {
		builder.WriteString(fmt.Sprintf("\n\n而家嘅練習情景：%s。請代入呢個情景入面嘅角色同學生傾偈。", scenario))
	}

	if len(p.StyleRules) > 0 {
		builder.WriteString("\n\n回覆規則：\n- ")
		builder.WriteString(strings.Join(p.StyleRules, "\n- "))
	}
	return builder.String()
}

// BuildMessages 把系统提示、最近 contextTurns 条历史与本轮用户输入拼成请求消息。
func (p TutorPrompt) BuildMessages(scenario string, history []chat.Turn, contextTurns int, userText string) []Message {
	start := 0
	if contextTurns >= 0 && len(history) > contextTurns {
		start = len(history) - contextTurns
	}

	messages := make([]Message, 0, len(history)-start+2)
	messages = append(messages, Message{Role: RoleSystem, Content: p.BuildSystemPrompt(scenario)})
	for _, turn := range history[start:] {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, Message{Role: RoleUser, Content: turn.Text})
		case chat.RoleAssistant:
			messages = append(messages, Message{Role: RoleAssistant, Content: turn.Text})
		}
	}
	messages = append(messages, Message{Role: RoleUser, Content: userText})
	return messages
}

const feedbackSystemPrompt = "你係一位廣東話發音同用詞老師。學生啱啱講咗一句說話（語音轉寫而成）。請用一句簡短、鼓勵嘅香港粵語口語，指出一個最值得改善嘅地方（用詞、語序或者書面語改口語），冇問題就稱讚佢。\n輸出要求：只返回一個 JSON 物件，格式為 {\"feedback\": \"...\"}，唔好輸出其他文字。"

// BuildFeedbackMessages 构造点评学生发言的请求。
func BuildFeedbackMessages(userText, scenario string) []Message {
	user := fmt.Sprintf("學生講：「%s」", strings.TrimSpace(userText))
	if scenario = strings.TrimSpace(scenario); scenario != "" {
		user += fmt.Sprintf("\n情景：%s", scenario)
	}
	return []Message{
		{Role: RoleSystem, Content: feedbackSystemPrompt},
		{Role: RoleUser, Content: user},
	}
}
