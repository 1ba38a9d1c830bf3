package speech

import "time"

// ASRResponse 语音识别响应
type ASRResponse struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status,omitempty"`
	Duration   int64     `json:"duration"` // milliseconds
	CreatedAt  time.Time `json:"createdAt"`
}

// TTSResponse 语音合成响应
type TTSResponse struct {
	AudioData []byte    `json:"-"`
	MimeType  string    `json:"mimeType"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
