package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/controller"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
)

// fileMicrophone 用音频文件模拟录音。
type fileMicrophone struct {
	mu         sync.Mutex
	permission controller.Permission
	pending    controller.Recording
	recording  bool
}

func newFileMicrophone(permission controller.Permission) *fileMicrophone {
	switch permission {
	case controller.PermissionGranted, controller.PermissionDenied:
	default:
		permission = controller.PermissionPrompt
	}
	return &fileMicrophone{permission: permission}
}

// Load 读取下一次 Stop 返回的录音。
func (m *fileMicrophone) Load(path string) error {
	if path == "" {
		return errors.New("usage: /rec <audio file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	m.mu.Lock()
	m.pending = controller.Recording{Data: data, MimeType: mimeType}
	m.mu.Unlock()
	return nil
}

func (m *fileMicrophone) Permission(ctx context.Context) (controller.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission, nil
}

// Request 模拟系统授权弹窗：prompt 时视为允许，denied 保持拒绝。
func (m *fileMicrophone) Request(ctx context.Context) (controller.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permission == controller.PermissionPrompt {
		m.permission = controller.PermissionGranted
	}
	return m.permission, nil
}

func (m *fileMicrophone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending.Data) == 0 {
		return errors.New("no audio loaded")
	}
	m.recording = true
	return nil
}

func (m *fileMicrophone) Stop() (controller.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recording {
		return controller.Recording{}, errors.New("not recording")
	}
	m.recording = false
	rec := m.pending
	m.pending = controller.Recording{}
	return rec, nil
}

// filePlayer 把导师语音写到文件，配置了外部命令时再调用它播放。
type filePlayer struct {
	dir     string
	command string
	n       int
	mu      sync.Mutex
}

func newFilePlayer(dir, command string) *filePlayer {
	return &filePlayer{dir: dir, command: strings.TrimSpace(command)}
}

func (p *filePlayer) Play(ctx context.Context, audio string, rate float64) error {
	mimeType, data, err := speech.ParseDataURI(audio)
	if err != nil {
		return err
	}

	ext := ".mp3"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}

	p.mu.Lock()
	p.n++
	path := filepath.Join(p.dir, fmt.Sprintf("tutor-%d-%d%s", time.Now().Unix(), p.n, ext))
	p.mu.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("  ♪ %s (x%.2f)\n", path, rate)

	if p.command == "" {
		return nil
	}
	return exec.CommandContext(ctx, p.command, path).Run()
}

// terminalDialogs 在终端询问权限相关的选择。
type terminalDialogs struct {
	in *bufio.Scanner
}

func (d *terminalDialogs) ExplainMicrophone(ctx context.Context) bool {
	return d.ask("練習口語需要使用咪高峰，錄音只會用嚟識別你講嘅句子。繼續？[y/N] ")
}

func (d *terminalDialogs) MicrophoneBlocked(ctx context.Context) bool {
	return d.ask("咪高峰權限被拒絕。請喺系統設定允許錄音，然後重試？[y/N] ")
}

func (d *terminalDialogs) ask(prompt string) bool {
	fmt.Print(prompt)
	if !d.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(d.in.Text()))
	return answer == "y" || answer == "yes"
}
