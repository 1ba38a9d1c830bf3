package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

const (
	volcTTSEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	volcASREndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	volcASRResource = "volc.bigasr.sauc.duration"

	volcTTSDefaultResource = "volc.service_type.10029"
	volcTTSSeedResource    = "seed-tts-2.0"
	volcTTSMegaResource    = "volc.megatts.default"

	// 16kHz 16bit 单声道约 200ms
	volcASRChunkSize = 6400
)

var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// VolcengineClient 通过火山引擎 WebSocket 接口完成合成与识别。
type VolcengineClient struct {
	config *speechmodel.SpeechConfig
	dialer *websocket.Dialer
}

type volcTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string `json:"speaker"`
		Text        string `json:"text"`
		Language    string `json:"language,omitempty"`
		AudioParams struct {
			Format     string  `json:"format"`
			SampleRate int     `json:"sample_rate"`
			SpeedRatio float32 `json:"speed_ratio,omitempty"`
		} `json:"audio_params"`
	} `json:"req_params"`
}

type volcTTSMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

type volcASRRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName  string `json:"model_name"`
		EnableITN  bool   `json:"enable_itn,omitempty"`
		EnablePunc bool   `json:"enable_punc,omitempty"`
		ResultType string `json:"result_type,omitempty"`
	} `json:"request"`
}

type volcASRMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text string `json:"text"`
		} `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// NewVolcengineClient 创建火山引擎语音客户端。
func NewVolcengineClient(config *speechmodel.SpeechConfig) *VolcengineClient {
	return &VolcengineClient{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Name 返回提供方标识。
func (c *VolcengineClient) Name() string {
	return speechmodel.ProviderVolcengine
}

// Synthesize 依次尝试与音色匹配的资源 ID，遇到资源不匹配时换下一个。
func (c *VolcengineClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !c.config.Enabled(speechmodel.ProviderVolcengine) {
		return nil, ErrMissingCredentials
	}

	speaker := strings.TrimSpace(req.Voice)
	if speaker == "" {
		speaker = c.config.VolcVoice
	}

	var lastErr error
	for i, resourceID := range resolveTTSResources(speaker) {
		resp, err := c.synthesizeWithResource(ctx, req, speaker, resourceID)
		if err == nil {
			if i > 0 {
				log.Printf("[tts] voice %s succeeded with fallback resource %s", speaker, resourceID)
			}
			return resp, nil
		}
		if !errors.Is(err, errResourceMismatch) {
			return nil, err
		}
		log.Printf("[tts] voice %s resource %s mismatch", speaker, resourceID)
		lastErr = err
	}
	return nil, lastErr
}

func (c *VolcengineClient) synthesizeWithResource(ctx context.Context, req *speechmodel.TTSRequest, speaker, resourceID string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()
	conn, err := c.dial(ctx, c.ttsURL(), resourceID, connectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tts websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload := volcTTSRequest{}
	payload.User.UID = req.SessionID
	if payload.User.UID == "" {
		payload.User.UID = connectID
	}
	payload.ReqParams.Speaker = speaker
	payload.ReqParams.Text = req.Text
	payload.ReqParams.Language = c.config.VolcLanguage
	payload.ReqParams.AudioParams.Format = "mp3"
	payload.ReqParams.AudioParams.SampleRate = 24000
	if c.config.VolcSpeed > 0 && c.config.VolcSpeed != 1.0 {
		payload.ReqParams.AudioParams.SpeedRatio = c.config.VolcSpeed
	}

	if err := c.sendJSON(conn, payload, false); err != nil {
		return nil, err
	}

	var audio bytes.Buffer
	reqID := connectID
	finish := func() (*speechmodel.TTSResponse, error) {
		if audio.Len() == 0 {
			return nil, fmt.Errorf("tts audio is empty")
		}
		return &speechmodel.TTSResponse{
			AudioData: audio.Bytes(),
			MimeType:  "audio/mpeg",
			RequestID: reqID,
			CreatedAt: time.Now(),
		}, nil
	}

	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("tts: %w", err)
		}

		body, err := f.body()
		if err != nil {
			return nil, fmt.Errorf("tts: %w", err)
		}

		switch f.msgType {
		case msgError:
			if strings.Contains(string(body), errResourceMismatch.Error()) {
				return nil, errResourceMismatch
			}
			return nil, fmt.Errorf("tts error %d: %s", f.errCode, body)

		case msgAudioOnlyServerResponse:
			audio.Write(body)
			if f.isLast() {
				return finish()
			}

		case msgFullServerResponse:
			var msg volcTTSMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					log.Printf("[tts] failed to unmarshal volcengine payload: %v", err)
				}
			}
			if msg.Code != 0 && msg.Code != 3000 {
				return nil, fmt.Errorf("tts api error %d: %s", msg.Code, msg.Message)
			}
			if msg.ReqID != "" {
				reqID = msg.ReqID
			}
			if msg.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode tts audio chunk: %w", err)
				}
				audio.Write(chunk)
			}
			if f.event == eventSessionFailed {
				return nil, fmt.Errorf("tts session failed: %s", msg.Message)
			}
			if f.event == eventSessionFinished || f.isLast() || msg.Sequence < 0 {
				return finish()
			}
		}
	}
}

// Transcribe 发送参数首包与 gzip 音频分包，等待最后一包识别结果。
func (c *VolcengineClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if len(req.AudioData) == 0 {
		return nil, ErrEmptyAudio
	}
	if !c.config.Enabled(speechmodel.ProviderVolcengine) {
		return nil, ErrMissingCredentials
	}

	connectID := uuid.NewString()
	conn, err := c.dial(ctx, c.asrURL(), volcASRResource, connectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to asr websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload := volcASRRequest{}
	payload.User.UID = req.SessionID
	payload.Audio.Language = req.Language
	if payload.Audio.Language == "" {
		payload.Audio.Language = c.config.VolcLanguage
	}
	payload.Audio.Format, payload.Audio.Codec = volcAudioFormat(req.MimeType)
	payload.Audio.Rate = 16000
	payload.Audio.Bits = 16
	payload.Audio.Channel = 1
	payload.Request.ModelName = "bigmodel"
	payload.Request.EnableITN = true
	payload.Request.EnablePunc = true
	payload.Request.ResultType = "full"

	if err := c.sendJSON(conn, payload, true); err != nil {
		return nil, err
	}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- sendAudio(conn, req.AudioData)
	}()

	var (
		text     string
		duration int64
	)
	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			select {
			case sErr := <-sendErr:
				if sErr != nil {
					return nil, fmt.Errorf("failed to send audio: %w", sErr)
				}
			default:
			}
			return nil, fmt.Errorf("asr: %w", err)
		}

		body, err := f.body()
		if err != nil {
			return nil, fmt.Errorf("asr: %w", err)
		}

		switch f.msgType {
		case msgError:
			return nil, fmt.Errorf("asr error %d: %s", f.errCode, body)
		case msgFullServerResponse:
			var msg volcASRMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				log.Printf("[asr] failed to unmarshal volcengine payload: %v", err)
				continue
			}
			if msg.Code != 0 && msg.Code != 20000000 {
				return nil, fmt.Errorf("asr api error %d: %s", msg.Code, msg.Message)
			}
			if candidate := volcTranscript(msg); candidate != "" {
				text = candidate
			}
			if msg.AudioInfo.Duration > 0 {
				duration = msg.AudioInfo.Duration
			}
			if f.isLast() || msg.Sequence < 0 {
				// 接口不返回置信度，报 0
				return &speechmodel.ASRResponse{
					Text:       text,
					Confidence: 0,
					Status:     "Success",
					Duration:   duration,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func (c *VolcengineClient) dial(ctx context.Context, endpoint, resourceID, connectID string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Api-App-Key", c.config.VolcAppID)
	header.Set("X-Api-Access-Key", c.config.VolcAccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[speech] volcengine connected, logid=%s", logid)
		}
	}
	return conn, nil
}

func (c *VolcengineClient) sendJSON(conn *websocket.Conn, payload any, gzipped bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	f, err := clientRequest(data, gzipped)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(f)); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (c *VolcengineClient) ttsURL() string {
	if c.config.VolcTTSEndpoint != "" {
		return c.config.VolcTTSEndpoint
	}
	return volcTTSEndpoint
}

func (c *VolcengineClient) asrURL() string {
	if c.config.VolcASREndpoint != "" {
		return c.config.VolcASREndpoint
	}
	return volcASREndpoint
}

// sendAudio 分包发送音频，首包参数占用序号 1。
func sendAudio(conn *websocket.Conn, audio []byte) error {
	sequence := int32(2)
	for start := 0; start < len(audio); start += volcASRChunkSize {
		end := min(start+volcASRChunkSize, len(audio))
		f, err := audioRequest(audio[start:end], sequence, end == len(audio))
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(f)); err != nil {
			return err
		}
		sequence++
	}
	return nil
}

func readFrame(ctx context.Context, conn *websocket.Conn) (frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return frame{}, ctxErr
		}
		return frame{}, fmt.Errorf("failed to read message: %w", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		return frame{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return f, nil
}

func volcTranscript(msg volcASRMessage) string {
	if text := strings.TrimSpace(msg.Result.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(msg.Result.Utterances))
	for _, u := range msg.Result.Utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func volcAudioFormat(mimeType string) (format, codec string) {
	switch baseMimeType(mimeType) {
	case "audio/ogg", "audio/webm":
		return "ogg", "opus"
	case "audio/mpeg", "audio/mp3":
		return "mp3", ""
	case "audio/pcm", "audio/l16":
		return "pcm", "raw"
	default:
		return "wav", "raw"
	}
}

// resolveTTSResources 根据音色命名推断资源 ID 的尝试顺序。
func resolveTTSResources(voice string) []string {
	if strings.HasPrefix(voice, "S_") {
		return []string{volcTTSMegaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{volcTTSSeedResource, volcTTSDefaultResource}
		}
	}
	return []string{volcTTSDefaultResource, volcTTSSeedResource}
}
