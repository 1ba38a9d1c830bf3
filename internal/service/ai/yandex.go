package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Morwran/yagpt"
)

// IAM 令牌有效期 12 小时，这里提前刷新。
const yandexTokenTTL = time.Hour

// yagpt 固定了 completion 参数，LLM_TEMPERATURE 和 LLM_MAX_TOKENS 对 yandex 不生效。
const (
	yandexTemperature = 0.6
	yandexMaxTokens   = 2000
)

// YandexClient 调用 YandexGPT。
type YandexClient struct {
	oauthToken string
	folderID   string

	mu       sync.Mutex
	ya       yagpt.YaGPTFace
	iamToken string
	issuedAt time.Time
}

// NewYandex 创建客户端，IAM 令牌在首次调用时获取。
func NewYandex(oauthToken, folderID string) *YandexClient {
	return &YandexClient{oauthToken: oauthToken, folderID: folderID}
}

// Name 返回提供方标识。
func (c *YandexClient) Name() string {
	return "yandex"
}

// Generate 调用 completion 接口。
func (c *YandexClient) Generate(ctx context.Context, messages []Message) (string, error) {
	ya, token, err := c.session()
	if err != nil {
		return "", err
	}

	yaMsgs := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		yaMsgs = append(yaMsgs, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := ya.CompletionWithCtx(ctx, token, yaMsgs)
	if err != nil {
		return "", fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Alternatives[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *YandexClient) session() (yagpt.YaGPTFace, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ya == nil {
		ya, err := yagpt.NewYagpt(c.folderID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to init yagpt: %w", err)
		}
		c.ya = ya
	}

	if c.iamToken == "" || time.Since(c.issuedAt) > yandexTokenTTL {
		iam, err := yagpt.NewYaIam(c.oauthToken)
		if err != nil {
			return nil, "", fmt.Errorf("failed to init yandex iam: %w", err)
		}
		resp, err := iam.Create()
		if err != nil {
			return nil, "", fmt.Errorf("failed to create iam token: %w", err)
		}
		c.iamToken = resp.IamToken
		c.issuedAt = time.Now()
	}

	return c.ya, c.iamToken, nil
}
