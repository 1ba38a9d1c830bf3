package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

// LLM 提供方标识
const (
	LLMProviderMock        = "mock"
	LLMProviderOpenAI      = "openai"
	LLMProviderAzureOpenAI = "azure-openai"
	LLMProviderArk         = "ark"
	LLMProviderYandex      = "yandex"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Session SessionConfig
	Tutor   TutorConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port          string   `env:"PORT" envDefault:"4000"`
	ClientOrigins []string `env:"CLIENT_ORIGIN" envSeparator:"," envDefault:"http://localhost:5173"`
	Version       string   `env:"APP_VERSION" envDefault:"0.1.0-prototype"`
	MaxBodyBytes  int64    `env:"MAX_BODY_BYTES" envDefault:"2097152"`

	// Addr 由 Port 推导
	Addr string
}

// AIConfig 描述大模型相关配置。Temperature 和 MaxTokens 只作用于 openai、azure-openai 与 ark。
type AIConfig struct {
	Provider         string        `env:"LLM_PROVIDER" envDefault:"mock"`
	BaseURL          string        `env:"LLM_BASE_URL"`
	Model            string        `env:"LLM_MODEL"`
	APIVersion       string        `env:"LLM_API_VERSION"`
	APIKey           string        `env:"LLM_API_KEY"`
	AccessKey        string        `env:"ARK_ACCESS_KEY"`
	SecretKey        string        `env:"ARK_SECRET_KEY"`
	Region           string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	Temperature      float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens        int           `env:"LLM_MAX_TOKENS" envDefault:"300"`
	Timeout          time.Duration `env:"LLM_TIMEOUT" envDefault:"8s"`
	FeedbackEnabled  bool          `env:"FEEDBACK_ENABLED" envDefault:"true"`
}

// Enabled 表示所选 LLM 提供方是否提供了必需的凭证。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case LLMProviderOpenAI:
		return c.APIKey != "" && c.Model != ""
	case LLMProviderAzureOpenAI:
		return c.APIKey != "" && c.Model != "" && c.BaseURL != ""
	case LLMProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case LLMProviderYandex:
		return c.YandexOAuthToken != "" && c.YandexFolderID != ""
	default:
		return false
	}
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	TTSProvider      string        `env:"TTS_PROVIDER" envDefault:"mock"`
	STTProvider      string        `env:"STT_PROVIDER"`
	AzureKey         string        `env:"AZURE_SPEECH_KEY"`
	AzureRegion      string        `env:"AZURE_SPEECH_REGION"`
	AzureVoice       string        `env:"AZURE_TTS_VOICE" envDefault:"zh-HK-HiuMaanNeural"`
	AzureRate        string        `env:"AZURE_TTS_RATE" envDefault:"0%"`
	AzurePitch       string        `env:"AZURE_TTS_PITCH" envDefault:"0%"`
	AzureSTTLanguage string        `env:"AZURE_STT_LANGUAGE" envDefault:"zh-HK"`
	VolcAppID        string        `env:"VOLC_APP_ID"`
	VolcAccessToken  string        `env:"VOLC_ACCESS_TOKEN"`
	VolcVoice        string        `env:"VOLC_TTS_VOICE" envDefault:"zh_female_vv_uranus_bigtts"`
	VolcSpeed        float32       `env:"VOLC_TTS_SPEED" envDefault:"1.0"`
	VolcLanguage     string        `env:"VOLC_LANGUAGE" envDefault:"zh-HK"`
	Timeout          time.Duration `env:"SPEECH_TIMEOUT" envDefault:"6s"`
}

// Enabled 表示 provider 是否具备可用凭证。
func (c SpeechConfig) Enabled(provider string) bool {
	return c.Model().Enabled(provider)
}

// Model 转换为语音服务使用的配置结构。
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		TTSProvider:      c.TTSProvider,
		STTProvider:      c.STTProvider,
		AzureKey:         c.AzureKey,
		AzureRegion:      c.AzureRegion,
		AzureVoice:       c.AzureVoice,
		AzureRate:        c.AzureRate,
		AzurePitch:       c.AzurePitch,
		AzureSTTLanguage: c.AzureSTTLanguage,
		VolcAppID:        c.VolcAppID,
		VolcAccessToken:  c.VolcAccessToken,
		VolcVoice:        c.VolcVoice,
		VolcSpeed:        c.VolcSpeed,
		VolcLanguage:     c.VolcLanguage,
		Timeout:          c.Timeout,
	}
}

// SessionConfig 控制会话的生命周期。
type SessionConfig struct {
	TTL       time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SweepSpec string        `env:"SESSION_SWEEP_SPEC" envDefault:"@every 10m"`
}

// TutorConfig 控制一次对话交换的输入与上下文大小。
type TutorConfig struct {
	HistoryLimit    int `env:"HISTORY_LIMIT" envDefault:"20"`
	ContextTurns    int `env:"CONTEXT_TURNS" envDefault:"10"`
	MaxUserText     int `env:"MAX_USER_TEXT" envDefault:"400"`
	MaxScenarioText int `env:"MAX_SCENARIO_TEXT" envDefault:"120"`
	CacheSize       int `env:"TTS_CACHE_SIZE" envDefault:"50"`
}

func (c *Config) normalize() error {
	addr, err := resolveAddr(c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Addr = addr
	c.Server.ClientOrigins = compact(c.Server.ClientOrigins)

	c.AI.Provider = normalizeProvider(c.AI.Provider, LLMProviderMock)

	c.Speech.TTSProvider = normalizeProvider(c.Speech.TTSProvider, speechmodel.ProviderMock)
	c.Speech.STTProvider = normalizeProvider(c.Speech.STTProvider, c.Speech.TTSProvider)

	if c.Tutor.HistoryLimit < 2 {
		return fmt.Errorf("invalid HISTORY_LIMIT value %d: must hold at least one exchange", c.Tutor.HistoryLimit)
	}
	if c.Tutor.ContextTurns < 0 {
		c.Tutor.ContextTurns = 0
	}
	if c.Tutor.CacheSize < 1 {
		c.Tutor.CacheSize = 1
	}
	return nil
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "4000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":4000" 或 "127.0.0.1:4000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func normalizeProvider(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
