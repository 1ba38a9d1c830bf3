// Package api is a typed client for the tutor backend JSON API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/analysis/colloquial"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
)

// DefaultBaseURL matches the server's default listen address.
const DefaultBaseURL = "http://localhost:4000/api"

// Error is a non-2xx response decoded from the {error, message} body.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d %s", e.Status, e.Code)
}

// Health is the /health response.
type Health struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Version     string `json:"version"`
	TTSProvider string `json:"ttsProvider"`
	LLMProvider string `json:"llmProvider"`
}

// Transcript is the /speech-to-text response.
type Transcript struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
	Error      string  `json:"error,omitempty"`
}

// ExchangeRequest is one turn sent to /recognize-and-respond.
type ExchangeRequest struct {
	SessionID string `json:"sessionId"`
	UserText  string `json:"userText"`
	Scenario  string `json:"scenario,omitempty"`
}

// Exchange is the /recognize-and-respond response.
type Exchange struct {
	AIText      string                  `json:"aiText"`
	Feedback    string                  `json:"feedback"`
	Corrections []colloquial.Correction `json:"corrections"`
	TTSAudio    string                  `json:"ttsAudio"`
	History     []chat.Turn             `json:"history"`
	LatencyMs   int64                   `json:"latencyMs"`
	LLMProvider string                  `json:"llmProvider"`
	LLMFallback bool                    `json:"llmFallback"`
	TTSProvider string                  `json:"ttsProvider"`
	TTSLatency  int64                   `json:"ttsLatency"`
	TTSError    string                  `json:"ttsError,omitempty"`
	TTSFallback bool                    `json:"ttsFallback"`
	TTSCached   bool                    `json:"ttsCached"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client talks to one backend instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client rooted at baseURL, e.g. http://localhost:4000/api.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks the backend.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scenarios lists the practice scenario labels.
func (c *Client) Scenarios(ctx context.Context) ([]string, error) {
	var out struct {
		Scenarios []string `json:"scenarios"`
	}
	if err := c.do(ctx, http.MethodGet, "/scenarios", nil, &out); err != nil {
		return nil, err
	}
	return out.Scenarios, nil
}

// CreateSession starts a new practice session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// CloseSession discards a session on the server.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

// SpeechToText submits a base64 data URI for recognition.
func (c *Client) SpeechToText(ctx context.Context, sessionID, audioData, language string) (*Transcript, error) {
	body := map[string]string{
		"sessionId": sessionID,
		"audioData": audioData,
		"language":  language,
	}
	var out Transcript
	if err := c.do(ctx, http.MethodPost, "/speech-to-text", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exchange sends one learner utterance and returns the tutor's turn.
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (*Exchange, error) {
	var out Exchange
	if err := c.do(ctx, http.MethodPost, "/recognize-and-respond", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			apiErr.Code = envelope.Error
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
