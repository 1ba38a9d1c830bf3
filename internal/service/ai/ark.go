package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
)

// EinoClient 通过 eino 链调用任意 ChatModel。
type EinoClient struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArk 使用火山方舟模型创建客户端。
func NewArk(ctx context.Context, cfg config.AIConfig) (*EinoClient, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens

	arkCfg := &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		Model:       cfg.Model,
		Temperature: &temperature,
	}
	if maxTokens > 0 {
		arkCfg.MaxTokens = &maxTokens
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewEinoClient(ctx, config.LLMProviderArk, chatModel)
}

// NewEinoClient 把 ChatModel 编译成 消息模板 -> 模型 的链。
func NewEinoClient(ctx context.Context, name string, chatModel model.ChatModel) (*EinoClient, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("messages", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &EinoClient{name: name, chain: runnable}, nil
}

// Name 返回提供方标识。
func (c *EinoClient) Name() string {
	return c.name
}

// Generate 运行链并返回回复文本。
func (c *EinoClient) Generate(ctx context.Context, messages []Message) (string, error) {
	input := map[string]any{"messages": toSchemaMessages(messages)}

	msg, err := c.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(msg.Content), nil
}

func toSchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
