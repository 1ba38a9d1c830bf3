package ai

import (
	"context"
	"errors"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse 表示大模型返回了空内容。
var ErrEmptyResponse = errors.New("llm returned empty response")

// Message 是与具体 SDK 无关的对话消息。
type Message struct {
	Role    string
	Content string
}

// Client 抽象一个可生成单条回复的大模型提供方。
type Client interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}
