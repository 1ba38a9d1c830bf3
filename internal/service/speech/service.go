package speech

import (
	"context"
	"log"
	"strings"
	"time"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

// TranscriptFallback 在识别不可用时提供占位转写。
type TranscriptFallback interface {
	Transcript() (string, float64)
}

// Transcript 是一次语音转文字的结果。
type Transcript struct {
	Text       string
	Confidence float64
	Provider   string
	Error      string
}

// Service 按配置选择语音提供方，识别失败时回退到占位转写。
type Service struct {
	config      *speechmodel.SpeechConfig
	synthesizer Synthesizer
	recognizer  Recognizer
	fallback    TranscriptFallback
}

// NewService 创建语音服务。未配置或缺少凭证的提供方不会被创建。
func NewService(config *speechmodel.SpeechConfig, fallback TranscriptFallback) *Service {
	svc := &Service{config: config, fallback: fallback}

	if p := newProvider(config, config.TTSProvider); p != nil {
		svc.synthesizer = p
	}
	if config.STTProvider == config.TTSProvider {
		svc.recognizer, _ = svc.synthesizer.(Recognizer)
	} else if p := newProvider(config, config.STTProvider); p != nil {
		svc.recognizer = p
	}
	return svc
}

// provider 同时支持合成与识别。
type provider interface {
	Synthesizer
	Recognizer
}

func newProvider(config *speechmodel.SpeechConfig, name string) provider {
	if !config.Enabled(name) {
		if name != "" && name != speechmodel.ProviderMock {
			log.Printf("[speech] provider %s missing credentials, using mock", name)
		}
		return nil
	}

	switch name {
	case speechmodel.ProviderAzure:
		return NewAzureClient(config)
	case speechmodel.ProviderVolcengine:
		return NewVolcengineClient(config)
	default:
		return nil
	}
}

// Synthesizer 返回已配置的合成器，mock 时为 nil。
func (s *Service) Synthesizer() Synthesizer {
	return s.synthesizer
}

// TTSProvider 返回对外报告的合成提供方名称，凭证不全时为 mock。
func (s *Service) TTSProvider() string {
	if s.synthesizer == nil {
		return speechmodel.ProviderMock
	}
	return s.synthesizer.Name()
}

// STTProvider 返回对外报告的识别提供方名称。
func (s *Service) STTProvider() string {
	if s.recognizer == nil {
		return speechmodel.ProviderMock
	}
	return s.recognizer.Name()
}

// Transcribe 解析音频载荷并识别。只有载荷本身非法时返回错误；提供方失败回退到占位转写。
func (s *Service) Transcribe(ctx context.Context, sessionID, audioData, language string) (Transcript, error) {
	mimeType, audio, err := ParseDataURI(audioData)
	if err != nil {
		return Transcript{}, err
	}

	if s.recognizer == nil {
		return s.mockTranscript(""), nil
	}

	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.recognizer.Transcribe(ctx, &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: audio,
		MimeType:  mimeType,
		Language:  strings.TrimSpace(language),
	})
	if err != nil {
		log.Printf("[asr] %s failed after %s, falling back to mock: %v", s.recognizer.Name(), time.Since(started), err)
		return s.mockTranscript(err.Error()), nil
	}

	return Transcript{
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Provider:   s.recognizer.Name(),
	}, nil
}

func (s *Service) mockTranscript(errMsg string) Transcript {
	text, confidence := s.fallback.Transcript()
	return Transcript{
		Text:       text,
		Confidence: confidence,
		Provider:   speechmodel.ProviderMock,
		Error:      errMsg,
	}
}
