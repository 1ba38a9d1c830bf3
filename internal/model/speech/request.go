package speech

// ASRRequest 语音识别请求
type ASRRequest struct {
	SessionID string `json:"sessionId"`
	AudioData []byte `json:"-"`
	MimeType  string `json:"mimeType"` // audio/webm, audio/wav, ...
	Language  string `json:"language"` // zh-HK, yue-CN, ...
}

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Voice     string `json:"voice"`
}
