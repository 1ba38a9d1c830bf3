package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
)

// NewClient 按配置创建大模型客户端。mock 或凭证不全时返回 nil，调用方回退到模拟回复。
func NewClient(ctx context.Context, cfg config.AIConfig) (Client, error) {
	switch cfg.Provider {
	case config.LLMProviderMock:
		return nil, nil
	case config.LLMProviderOpenAI, config.LLMProviderAzureOpenAI, config.LLMProviderArk, config.LLMProviderYandex:
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}

	if !cfg.Enabled() {
		log.Printf("[llm] provider %s missing credentials, falling back to mock replies", cfg.Provider)
		return nil, nil
	}

	switch cfg.Provider {
	case config.LLMProviderArk:
		client, err := NewArk(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.LLMProviderYandex:
		log.Printf("[llm] yandex ignores LLM_TEMPERATURE=%.2f and LLM_MAX_TOKENS=%d, using fixed temperature %.1f and max tokens %d",
			cfg.Temperature, cfg.MaxTokens, yandexTemperature, yandexMaxTokens)
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID), nil
	default:
		return NewOpenAI(cfg), nil
	}
}
