package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TTS_PROVIDER", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":4000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Speech.TTSProvider != "mock" || cfg.Speech.STTProvider != "mock" {
		t.Fatalf("unexpected speech providers: %s/%s", cfg.Speech.TTSProvider, cfg.Speech.STTProvider)
	}
	if cfg.AI.Provider != LLMProviderMock {
		t.Fatalf("unexpected llm provider: %s", cfg.AI.Provider)
	}
	if cfg.Speech.Timeout != 6*time.Second {
		t.Fatalf("unexpected speech timeout: %s", cfg.Speech.Timeout)
	}
	if cfg.Tutor.HistoryLimit != 20 || cfg.Tutor.CacheSize != 50 || cfg.Tutor.MaxUserText != 400 {
		t.Fatalf("unexpected tutor config: %+v", cfg.Tutor)
	}
}

func TestLoadNormalizesProvidersAndOrigins(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("TTS_PROVIDER", " Azure ")
	t.Setenv("CLIENT_ORIGIN", "http://a.test, ,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Speech.TTSProvider != "azure" {
		t.Fatalf("unexpected tts provider: %q", cfg.Speech.TTSProvider)
	}
	if cfg.Speech.STTProvider != "azure" {
		t.Fatalf("stt provider should default to tts provider, got %q", cfg.Speech.STTProvider)
	}
	if len(cfg.Server.ClientOrigins) != 2 || cfg.Server.ClientOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.Server.ClientOrigins)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PORT", "80 80")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{name: "mock", cfg: AIConfig{Provider: LLMProviderMock, APIKey: "k", Model: "m"}, want: false},
		{name: "openai ok", cfg: AIConfig{Provider: LLMProviderOpenAI, APIKey: "k", Model: "m"}, want: true},
		{name: "openai no key", cfg: AIConfig{Provider: LLMProviderOpenAI, Model: "m"}, want: false},
		{name: "azure needs base url", cfg: AIConfig{Provider: LLMProviderAzureOpenAI, APIKey: "k", Model: "m"}, want: false},
		{name: "ark aksk", cfg: AIConfig{Provider: LLMProviderArk, Model: "m", AccessKey: "a", SecretKey: "s"}, want: true},
		{name: "yandex", cfg: AIConfig{Provider: LLMProviderYandex, YandexOAuthToken: "t", YandexFolderID: "f"}, want: true},
	}

	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("%s: Enabled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSpeechConfigEnabled(t *testing.T) {
	cfg := SpeechConfig{AzureKey: "k"}
	if cfg.Enabled("azure") {
		t.Fatal("azure should require region")
	}
	cfg.AzureRegion = "eastasia"
	if !cfg.Enabled("azure") {
		t.Fatal("azure should be enabled with key and region")
	}
	if cfg.Enabled("mock") {
		t.Fatal("mock is never an enabled cloud provider")
	}
}
