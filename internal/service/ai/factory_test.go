package ai

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
)

func TestNewClientFallsBackToNil(t *testing.T) {
	cases := []config.AIConfig{
		{Provider: config.LLMProviderMock},
		{Provider: config.LLMProviderOpenAI, Model: "m"},
		{Provider: config.LLMProviderYandex, YandexOAuthToken: "t"},
	}
	for _, cfg := range cases {
		client, err := NewClient(context.Background(), cfg)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", cfg.Provider, err)
		}
		if client != nil {
			t.Fatalf("%s: expected nil client, got %T", cfg.Provider, client)
		}
	}
}

func TestNewClientSelectsProvider(t *testing.T) {
	client, err := NewClient(context.Background(), config.AIConfig{
		Provider: config.LLMProviderAzureOpenAI,
		APIKey:   "k",
		Model:    "gpt-4o-mini",
		BaseURL:  "https://example.openai.azure.com",
	})
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}
	if client.Name() != config.LLMProviderAzureOpenAI {
		t.Fatalf("unexpected provider: %s", client.Name())
	}

	client, err = NewClient(context.Background(), config.AIConfig{
		Provider:         config.LLMProviderYandex,
		YandexOAuthToken: "t",
		YandexFolderID:   "f",
	})
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}
	if _, ok := client.(*YandexClient); !ok {
		t.Fatalf("expected yandex client, got %T", client)
	}
}

func TestNewClientYandexReportsIgnoredSampling(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	_, err := NewClient(context.Background(), config.AIConfig{
		Provider:         config.LLMProviderYandex,
		YandexOAuthToken: "t",
		YandexFolderID:   "f",
		Temperature:      0.2,
		MaxTokens:        120,
	})
	if err != nil {
		t.Fatalf("NewClient err: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "LLM_TEMPERATURE=0.20") || !strings.Contains(out, "LLM_MAX_TOKENS=120") {
		t.Fatalf("expected ignored sampling to be logged, got %q", out)
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	if _, err := NewClient(context.Background(), config.AIConfig{Provider: "bogus"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
