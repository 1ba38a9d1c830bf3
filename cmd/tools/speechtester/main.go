package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/mock"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: asr 或 tts")
	audioPath := flag.String("audio", "", "ASR 输入音频文件路径")
	text := flag.String("text", "", "TTS 输入文本")
	outputPath := flag.String("out", "", "TTS 输出音频文件路径 (默认自动生成)")
	language := flag.String("lang", "", "识别语言，默认使用 AZURE_STT_LANGUAGE")
	voice := flag.String("voice", "", "TTS 声音，默认使用配置中的声音")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if *mode != "asr" && *mode != "tts" {
		flag.Usage()
		log.Fatal("请通过 -mode=asr 或 -mode=tts 指定测试模式")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	speechCfg := cfg.Speech.Model()
	speechCfg.Timeout = *timeout
	svc := speech.NewService(speechCfg, mock.NewResponder(nil))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "asr":
		runASR(ctx, svc, cfg, sessionID, *audioPath, *language)
	case "tts":
		runTTS(ctx, svc, sessionID, *text, *voice, *outputPath)
	}
}

func runASR(ctx context.Context, svc *speech.Service, cfg *config.Config, sessionID, audioPath, language string) {
	if audioPath == "" {
		log.Fatal("ASR 模式需要通过 -audio 指定音频文件路径")
	}
	if svc.STTProvider() == speechmodel.ProviderMock {
		log.Println("[WARN] STT_PROVIDER 未配置或缺少凭证，结果将是占位转写")
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		log.Fatalf("读取音频文件失败: %v", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(audioPath)))
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	if language == "" {
		language = cfg.Speech.AzureSTTLanguage
	}

	log.Printf("开始进行 ASR 测试: provider=%s session=%s mime=%s language=%s", svc.STTProvider(), sessionID, mimeType, language)

	started := time.Now()
	transcript, err := svc.Transcribe(ctx, sessionID, speech.EncodeDataURI(mimeType, data), language)
	if err != nil {
		log.Fatalf("ASR 调用失败: %v", err)
	}
	if transcript.Error != "" {
		log.Printf("[WARN] %s 识别失败，已回退: %s", svc.STTProvider(), transcript.Error)
	}

	log.Printf("ASR 完成: provider=%s text=%q confidence=%.2f elapsed=%s",
		transcript.Provider, transcript.Text, transcript.Confidence, time.Since(started))
}

func runTTS(ctx context.Context, svc *speech.Service, sessionID, text, voice, outputPath string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("TTS 模式需要通过 -text 提供待合成文本")
	}

	synth := svc.Synthesizer()
	if synth == nil {
		log.Fatal("TTS_PROVIDER 未配置或缺少凭证，无法测试合成")
	}

	log.Printf("开始进行 TTS 测试: provider=%s session=%s voice=%q", synth.Name(), sessionID, voice)

	started := time.Now()
	resp, err := synth.Synthesize(ctx, &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
	})
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if outputPath == "" {
		ext := ".mp3"
		if exts, _ := mime.ExtensionsByType(resp.MimeType); len(exts) > 0 {
			ext = exts[0]
		}
		outputPath = fmt.Sprintf("tts-output-%d%s", time.Now().Unix(), ext)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("TTS 合成成功: 输出文件 %s, %d bytes, elapsed=%s", outputPath, len(resp.AudioData), time.Since(started))
}
