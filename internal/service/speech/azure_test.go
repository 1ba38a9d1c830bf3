package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
)

func newAzureTestConfig(endpoint string) *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AzureKey:         "secret",
		AzureRegion:      "eastasia",
		AzureVoice:       "zh-HK-HiuMaanNeural",
		AzureRate:        "0%",
		AzurePitch:       "0%",
		AzureSTTLanguage: "zh-HK",
		AzureEndpoint:    endpoint,
	}
}

func TestAzureSynthesize(t *testing.T) {
	var tokenCalls atomic.Int32
	var ssml string

	mux := http.NewServeMux()
	mux.HandleFunc("/sts/v1.0/issueToken", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("tok-1"))
	})
	mux.HandleFunc("/cognitiveservices/v1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Microsoft-OutputFormat") != azureOutputFormat {
			t.Errorf("unexpected output format: %s", r.Header.Get("X-Microsoft-OutputFormat"))
		}
		body, _ := io.ReadAll(r.Body)
		ssml = string(body)
		w.Header().Set("X-RequestId", "req-9")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewAzureClient(newAzureTestConfig(srv.URL))
	for i := 0; i < 2; i++ {
		resp, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "你好 <&>"})
		if err != nil {
			t.Fatalf("Synthesize err: %v", err)
		}
		if string(resp.AudioData) != "ID3-mp3-bytes" || resp.MimeType != "audio/mpeg" || resp.RequestID != "req-9" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	}

	if tokenCalls.Load() != 1 {
		t.Fatalf("token should be cached, got %d calls", tokenCalls.Load())
	}
	if !strings.Contains(ssml, `<voice name="zh-HK-HiuMaanNeural">`) || !strings.Contains(ssml, "你好 &lt;&amp;&gt;") {
		t.Fatalf("unexpected ssml: %s", ssml)
	}
}

func TestAzureSynthesizeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "issueToken") {
			_, _ = w.Write([]byte("tok"))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewAzureClient(newAzureTestConfig(srv.URL))
	if _, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "你好"}); err == nil {
		t.Fatal("expected error on upstream 429")
	}
}

func TestAzureSynthesizeValidation(t *testing.T) {
	client := NewAzureClient(&speechmodel.SpeechConfig{})
	if _, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: " "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "hi"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAzureTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech/recognition/conversation/cognitiveservices/v1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("language") != "zh-HK" || r.URL.Query().Get("format") != "detailed" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "audio/ogg") {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"RecognitionStatus":"Success","DisplayText":"你好，我想練習廣東話。","Duration":25000000,"NBest":[{"Confidence":0.87,"Display":"你好，我想練習廣東話。"}]}`))
	}))
	defer srv.Close()

	client := NewAzureClient(newAzureTestConfig(srv.URL))
	resp, err := client.Transcribe(context.Background(), &speechmodel.ASRRequest{AudioData: []byte{1, 2, 3}, MimeType: "audio/webm;codecs=opus"})
	if err != nil {
		t.Fatalf("Transcribe err: %v", err)
	}
	if resp.Text != "你好，我想練習廣東話。" || resp.Confidence != 0.87 || resp.Duration != 2500 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAzureTranscribeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RecognitionStatus":"NoMatch"}`))
	}))
	defer srv.Close()

	client := NewAzureClient(newAzureTestConfig(srv.URL))
	if _, err := client.Transcribe(context.Background(), &speechmodel.ASRRequest{AudioData: []byte{1}}); err == nil {
		t.Fatal("expected error for NoMatch status")
	}
}
