package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
)

// OpenAIClient 通过 OpenAI 兼容接口（含 Azure OpenAI）生成回复。
type OpenAIClient struct {
	client      *openai.Client
	name        string
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAI 根据配置创建客户端。provider 为 azure-openai 时 BaseURL 指向 Azure 资源地址。
func NewOpenAI(cfg config.AIConfig) *OpenAIClient {
	var clientCfg openai.ClientConfig
	if cfg.Provider == config.LLMProviderAzureOpenAI {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		name:        cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Name 返回提供方标识。
func (c *OpenAIClient) Name() string {
	return c.name
}

// Generate 调用 chat completions 接口。
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
