package speech

import (
	"encoding/base64"
	"strings"
)

// EncodeDataURI 把音频编码成 data:<mime>;base64,<payload>。
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI 解析 base64 data URI，也接受不带前缀的纯 base64。
func ParseDataURI(raw string) (string, []byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, ErrEmptyAudio
	}

	mimeType := ""
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		meta, body, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return "", nil, ErrInvalidDataURI
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidDataURI
	}
	if len(data) == 0 {
		return "", nil, ErrEmptyAudio
	}
	return mimeType, data, nil
}

// baseMimeType 去掉 codecs 等参数，返回小写的主类型。
func baseMimeType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
