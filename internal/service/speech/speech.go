package speech

import (
	"context"
	"errors"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

var (
	// ErrMissingCredentials 表示所选语音提供方缺少凭证。
	ErrMissingCredentials = errors.New("speech provider credentials missing")
	// ErrEmptyText 表示待合成文本为空。
	ErrEmptyText = errors.New("tts text is empty")
	// ErrEmptyAudio 表示待识别音频为空。
	ErrEmptyAudio = errors.New("audio data is empty")
	// ErrInvalidDataURI 表示音频载荷不是合法的 base64 data URI。
	ErrInvalidDataURI = errors.New("invalid audio data uri")
)

// Synthesizer 把文本合成为音频。
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// Recognizer 把音频识别为文本。
type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
}
