package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

const (
	azureOutputFormat = "audio-16khz-128kbitrate-mono-mp3"
	azureAudioMime    = "audio/mpeg"
	// 令牌有效期 10 分钟，提前一分钟刷新。
	azureTokenTTL = 9 * time.Minute
)

// AzureClient 通过 Azure Speech REST 接口完成合成与识别。
type AzureClient struct {
	config     *speechmodel.SpeechConfig
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	issuedAt time.Time
}

type azureRecognition struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Duration          int64  `json:"Duration"`
	NBest             []struct {
		Confidence float64 `json:"Confidence"`
		Display    string  `json:"Display"`
	} `json:"NBest"`
}

// NewAzureClient 创建 Azure 语音客户端。
func NewAzureClient(config *speechmodel.SpeechConfig) *AzureClient {
	return &AzureClient{
		config:     config,
		httpClient: &http.Client{},
	}
}

// Name 返回提供方标识。
func (c *AzureClient) Name() string {
	return speechmodel.ProviderAzure
}

// Synthesize 获取访问令牌后提交 SSML，返回 mp3 音频。
func (c *AzureClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !c.config.Enabled(speechmodel.ProviderAzure) {
		return nil, ErrMissingCredentials
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.config.AzureVoice
	}
	ssml := buildSSML(voice, c.config.AzureRate, c.config.AzurePitch, req.Text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsURL(), strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to build azure tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", "cantonese-tutor")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.resetToken()
		}
		return nil, fmt.Errorf("azure tts error %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read azure tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("azure tts returned empty audio")
	}

	return &speechmodel.TTSResponse{
		AudioData: audio,
		MimeType:  azureAudioMime,
		RequestID: resp.Header.Get("X-RequestId"),
		CreatedAt: time.Now(),
	}, nil
}

// Transcribe 调用短音频识别接口。
func (c *AzureClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if len(req.AudioData) == 0 {
		return nil, ErrEmptyAudio
	}
	if !c.config.Enabled(speechmodel.ProviderAzure) {
		return nil, ErrMissingCredentials
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = c.config.AzureSTTLanguage
	}

	query := url.Values{}
	query.Set("language", language)
	query.Set("format", "detailed")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sttURL()+"?"+query.Encode(), bytes.NewReader(req.AudioData))
	if err != nil {
		return nil, fmt.Errorf("failed to build azure stt request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.config.AzureKey)
	httpReq.Header.Set("Content-Type", azureAudioContentType(req.MimeType))
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure stt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure stt error %d", resp.StatusCode)
	}

	var result azureRecognition
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode azure stt response: %w", err)
	}
	if result.RecognitionStatus != "Success" {
		return nil, fmt.Errorf("azure recognition status %s", result.RecognitionStatus)
	}

	text := strings.TrimSpace(result.DisplayText)
	confidence := 0.0
	if len(result.NBest) > 0 {
		confidence = result.NBest[0].Confidence
		if text == "" {
			text = strings.TrimSpace(result.NBest[0].Display)
		}
	}

	return &speechmodel.ASRResponse{
		Text:       text,
		Confidence: confidence,
		Status:     result.RecognitionStatus,
		Duration:   result.Duration / 10_000, // 100ns -> ms
		CreatedAt:  time.Now(),
	}, nil
}

func (c *AzureClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.issuedAt) < azureTokenTTL {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build azure token request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.config.AzureKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("azure token error %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read azure token: %w", err)
	}

	c.token = strings.TrimSpace(string(body))
	c.issuedAt = time.Now()
	log.Printf("[tts] azure access token refreshed for region %s", c.config.AzureRegion)
	return c.token, nil
}

func (c *AzureClient) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *AzureClient) tokenURL() string {
	if base := c.endpoint(); base != "" {
		return base + "/sts/v1.0/issueToken"
	}
	return fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", c.config.AzureRegion)
}

func (c *AzureClient) ttsURL() string {
	if base := c.endpoint(); base != "" {
		return base + "/cognitiveservices/v1"
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.config.AzureRegion)
}

func (c *AzureClient) sttURL() string {
	const path = "/speech/recognition/conversation/cognitiveservices/v1"
	if base := c.endpoint(); base != "" {
		return base + path
	}
	return fmt.Sprintf("https://%s.stt.speech.microsoft.com%s", c.config.AzureRegion, path)
}

func (c *AzureClient) endpoint() string {
	return strings.TrimRight(strings.TrimSpace(c.config.AzureEndpoint), "/")
}

// buildSSML 生成粤语 SSML，文本与属性均做 XML 转义。
func buildSSML(voice, rate, pitch, text string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<speak version="1.0" xml:lang="zh-HK">` + "\n")
	b.WriteString(`  <voice name="` + escapeXML(voice) + `">` + "\n")
	b.WriteString(`    <prosody rate="` + escapeXML(rate) + `" pitch="` + escapeXML(pitch) + `">`)
	b.WriteString(escapeXML(text))
	b.WriteString("</prosody>\n  </voice>\n</speak>")
	return b.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func azureAudioContentType(mimeType string) string {
	switch baseMimeType(mimeType) {
	case "audio/ogg", "audio/webm":
		return "audio/ogg; codecs=opus"
	default:
		return "audio/wav; codecs=audio/pcm; samplerate=16000"
	}
}
