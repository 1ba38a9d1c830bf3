package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/api"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/controller"
)

const help = `命令：
  <文字>              发送一句话
  /rec <音频文件>      模拟按住说话，用文件内容作为录音
  /replay             重播上一段导师语音
  /rate <0.5-2>       设置播放速度
  /scenarios          列出情景
  /scenario <编号>     选择情景
  /edit <编号> <文字>  修改自己发过的句子（只在本地）
  /cancel             取消正在等待的回复
  /new                开始新对话
  /clear              清除对话记录
  /quit               退出`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	baseURL := flag.String("api", envOr("TUTOR_API_BASE", api.DefaultBaseURL), "后端 API 地址")
	outDir := flag.String("out", os.TempDir(), "导师语音的保存目录")
	playerCmd := flag.String("player", "", "播放音频的外部命令，例如 afplay 或 mpv")
	micPermission := flag.String("mic", "prompt", "模拟的麦克风权限: granted, prompt 或 denied")
	language := flag.String("lang", "zh-HK", "识别语言")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewScanner(os.Stdin)
	client := api.New(*baseURL)
	mic := newFileMicrophone(controller.Permission(*micPermission))

	ctrl := controller.New(client,
		controller.WithMicrophone(mic),
		controller.WithPlayer(newFilePlayer(*outDir, *playerCmd)),
		controller.WithDialogs(&terminalDialogs{in: in}),
		controller.WithLanguage(*language),
	)
	ctrl.Subscribe(newRenderer(os.Stdout).render)

	scenarios, err := connect(ctx, client)
	if err != nil {
		log.Fatalf("后端未连线: %v", err)
	}
	if len(scenarios) > 0 {
		ctrl.SetScenario(scenarios[0])
	}
	if err := ctrl.NewSession(ctx); err != nil {
		log.Fatalf("建立对话失败: %v", err)
	}
	fmt.Println(help)

	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := dispatch(ctx, ctrl, mic, scenarios, line); err != nil {
			fmt.Printf("  ! %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, ctrl *controller.Controller, mic *fileMicrophone, scenarios []string, line string) error {
	if !strings.HasPrefix(line, "/") {
		return ctrl.Send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/rec":
		if err := mic.Load(arg); err != nil {
			return err
		}
		if err := ctrl.Press(ctx); err != nil {
			return err
		}
		return ctrl.Release(ctx)
	case "/replay":
		return ctrl.Replay(ctx)
	case "/rate":
		rate, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid rate %q", arg)
		}
		return ctrl.SetRate(rate)
	case "/scenarios":
		for i, s := range scenarios {
			fmt.Printf("  %d. %s\n", i+1, s)
		}
		return nil
	case "/scenario":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(scenarios) {
			return fmt.Errorf("scenario must be 1-%d", len(scenarios))
		}
		ctrl.SetScenario(scenarios[n-1])
		fmt.Printf("  情景：%s\n", scenarios[n-1])
		return nil
	case "/edit":
		idx, text, _ := strings.Cut(arg, " ")
		n, err := strconv.Atoi(idx)
		if err != nil {
			return fmt.Errorf("invalid message number %q", idx)
		}
		return ctrl.Edit(n-1, text)
	case "/cancel":
		if !ctrl.Cancel() {
			return fmt.Errorf("nothing to cancel")
		}
		return nil
	case "/new":
		return ctrl.NewSession(ctx)
	case "/clear":
		ctrl.Clear()
		return nil
	default:
		fmt.Println(help)
		return nil
	}
}

// connect 检查后端健康状态，失败时每 3 秒重试一次。
func connect(ctx context.Context, client *api.Client) ([]string, error) {
	for attempt := 1; ; attempt++ {
		health, err := client.Health(ctx)
		if err == nil {
			fmt.Printf("已连线 API：%s (tts=%s llm=%s)\n", client.BaseURL(), health.TTSProvider, health.LLMProvider)
			return client.Scenarios(ctx)
		}
		if attempt >= 5 {
			return nil, err
		}
		log.Printf("后端未连线，3 秒后重试... (%v)", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
