// Package controller drives the practice client: microphone permission, press-and-hold
// recording, turn exchange and tutor audio playback behind a small state machine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/analysis/colloquial"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/client/api"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
)

var (
	ErrBusy              = errors.New("controller is busy")
	ErrNoSession         = errors.New("no active session")
	ErrNoMicrophone      = errors.New("no microphone available")
	ErrMicrophoneBlocked = errors.New("microphone permission denied")
	ErrNotRecording      = errors.New("not recording")
	ErrPlaybackBusy      = errors.New("audio is already playing")
	ErrNothingToReplay   = errors.New("no tutor audio to replay")
	ErrCanceled          = errors.New("exchange canceled")
	ErrInvalidRate       = errors.New("playback rate must be between 0.5 and 2")
	ErrNoTranscript      = errors.New("empty transcript")
)

const (
	defaultSlowThreshold = 5 * time.Second
	defaultErrorHold     = 3 * time.Second
	maxPermissionPrompts = 3

	greeting = "你好！我係你嘅廣東話導師，講句嘢嚟聽下？"
)

// Role 区分转写中的说话人。
type Role string

const (
	RoleUser  Role = "user"
	RoleTutor Role = "ai"
)

// Message 是转写中的一条记录，只存在于客户端。
type Message struct {
	Role        Role
	Text        string
	Audio       string
	Timestamp   time.Time
	Corrections []colloquial.Correction
	Edited      bool
}

// NoticeKind 区分提示条的样式。
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice 是可关闭的提示条。
type Notice struct {
	Text string
	Kind NoticeKind
}

// Snapshot 是推送给订阅者的只读视图。
type Snapshot struct {
	State     State
	SessionID string
	Scenario  string
	Rate      float64
	Messages  []Message
	Feedback  string
	Notice    Notice
	CanReplay bool
}

// Permission 是麦克风授权状态。
type Permission string

const (
	PermissionPrompt  Permission = "prompt"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Recording 是一段录音。
type Recording struct {
	Data     []byte
	MimeType string
}

// Microphone 录音设备。Permission 只查询，Request 才会向用户申请。
type Microphone interface {
	Permission(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
	Start(ctx context.Context) error
	Stop() (Recording, error)
}

// Player 播放 data URI 音频，阻塞到播放结束。
type Player interface {
	Play(ctx context.Context, audio string, rate float64) error
}

// Dialogs 展示权限相关对话框。返回 true 表示用户选择继续或重试。
type Dialogs interface {
	ExplainMicrophone(ctx context.Context) bool
	MicrophoneBlocked(ctx context.Context) bool
}

// Backend 是控制器使用的后端接口，*api.Client 满足它。
type Backend interface {
	CreateSession(ctx context.Context) (string, error)
	SpeechToText(ctx context.Context, sessionID, audioData, language string) (*api.Transcript, error)
	Exchange(ctx context.Context, req api.ExchangeRequest) (*api.Exchange, error)
}

// AfterFunc 在 d 之后调用 f，返回取消函数。
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option customizes a Controller.
type Option func(*Controller)

func WithMicrophone(m Microphone) Option { return func(c *Controller) { c.mic = m } }
func WithPlayer(p Player) Option         { return func(c *Controller) { c.player = p } }
func WithDialogs(d Dialogs) Option       { return func(c *Controller) { c.dialogs = d } }
func WithLanguage(lang string) Option    { return func(c *Controller) { c.language = lang } }
func WithAfterFunc(f AfterFunc) Option   { return func(c *Controller) { c.afterFunc = f } }

// WithSlowThreshold sets how long processing may take before the "still processing" notice.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Controller) { c.slowThreshold = d }
}

// WithErrorHold sets how long the error state is held before returning to idle.
func WithErrorHold(d time.Duration) Option {
	return func(c *Controller) { c.errorHold = d }
}

// WithClock overrides message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the client state. All methods are safe for concurrent use; Cancel and
// Replay are expected to be called while Send or Release is still running.
type Controller struct {
	backend Backend
	mic     Microphone
	player  Player
	dialogs Dialogs

	language      string
	slowThreshold time.Duration
	errorHold     time.Duration
	afterFunc     AfterFunc
	now           func() time.Time

	mu        sync.Mutex
	state     State
	sessionID string
	scenario  string
	rate      float64
	messages  []Message
	feedback  string
	notice    Notice
	lastAudio string
	playing   bool

	// gen 每次发起或取消等待都会递增，过期的响应据此被丢弃
	gen       uint64
	stopSlow  func() bool
	stopReset func() bool

	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a controller in the idle state.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:       backend,
		language:      "zh-HK",
		slowThreshold: defaultSlowThreshold,
		errorHold:     defaultErrorHold,
		afterFunc:     realAfterFunc,
		now:           time.Now,
		state:         StateIdle,
		rate:          1,
		subs:          make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for every state change and calls it once with the current snapshot.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snap := c.snapshotLocked()
	c.mu.Unlock()

	fn(snap)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// update 在锁内修改状态，解锁后通知订阅者。
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	return Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		Scenario:  c.scenario,
		Rate:      c.rate,
		Messages:  messages,
		Feedback:  c.feedback,
		Notice:    c.notice,
		CanReplay: c.lastAudio != "",
	}
}

func (c *Controller) fireLocked(event Event) bool {
	next, ok := Transition(c.state, event)
	if ok {
		c.state = next
	}
	return ok
}

// NewSession starts a fresh server session and resets the transcript.
func (c *Controller) NewSession(ctx context.Context) error {
	c.mu.Lock()
	busy := c.state != StateIdle && c.state != StateError
	c.mu.Unlock()
	if busy {
		return ErrBusy
	}

	id, err := c.backend.CreateSession(ctx)
	if err != nil {
		c.update(func() {
			c.notice = Notice{Text: "後端未連線，請稍後再試", Kind: NoticeError}
		})
		return fmt.Errorf("create session: %w", err)
	}

	c.update(func() {
		c.sessionID = id
		c.messages = []Message{{Role: RoleTutor, Text: greeting, Timestamp: c.now()}}
		c.feedback = ""
		c.lastAudio = ""
		c.notice = Notice{Text: "已建立對話：" + shortID(id), Kind: NoticeInfo}
	})
	return nil
}

// SetScenario selects the practice scenario sent with each exchange.
func (c *Controller) SetScenario(label string) {
	c.update(func() { c.scenario = strings.TrimSpace(label) })
}

// SetRate selects the playback rate.
func (c *Controller) SetRate(rate float64) error {
	if rate < 0.5 || rate > 2 {
		return ErrInvalidRate
	}
	c.update(func() { c.rate = rate })
	return nil
}

// Clear empties the rendered transcript. The server session is untouched.
func (c *Controller) Clear() {
	c.update(func() {
		c.messages = nil
		c.feedback = ""
		c.notice = Notice{Text: "已清除對話記錄", Kind: NoticeInfo}
	})
}

// Dismiss hides the notice banner.
func (c *Controller) Dismiss() {
	c.update(func() { c.notice = Notice{} })
}

// Edit rewrites one of the learner's messages locally and marks it edited.
func (c *Controller) Edit(index int, text string) error {
	var err error
	c.update(func() {
		if index < 0 || index >= len(c.messages) || c.messages[index].Role != RoleUser {
			err = fmt.Errorf("message %d is not an editable learner message", index)
			return
		}
		c.messages[index].Text = strings.TrimSpace(text)
		c.messages[index].Edited = true
	})
	return err
}

// Send submits typed text as one exchange and plays the reply.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		err   error
		gen   uint64
		index int
	)
	c.update(func() {
		if c.sessionID == "" {
			err = ErrNoSession
			return
		}
		if !c.fireLocked(EventSubmit) {
			err = ErrBusy
			return
		}
		gen = c.beginWaitLocked()
		index = c.appendLocked(Message{Role: RoleUser, Text: text, Timestamp: c.now()})
	})
	if err != nil {
		return err
	}
	return c.exchange(ctx, gen, index, text)
}

// Press starts recording after the microphone permission flow succeeds.
func (c *Controller) Press(ctx context.Context) error {
	c.mu.Lock()
	_, allowed := Transition(c.state, EventPress)
	hasSession := c.sessionID != ""
	c.mu.Unlock()

	switch {
	case !hasSession:
		return ErrNoSession
	case !allowed:
		return ErrBusy
	case c.mic == nil:
		return ErrNoMicrophone
	}

	if err := c.ensurePermission(ctx); err != nil {
		c.update(func() {
			c.notice = Notice{Text: "未能使用咪高峰，請喺設定度允許錄音權限", Kind: NoticeError}
		})
		return err
	}

	if err := c.mic.Start(ctx); err != nil {
		c.fail(0, "錄音失敗，請再試一次")
		return fmt.Errorf("start recording: %w", err)
	}

	var err error
	c.update(func() {
		if !c.fireLocked(EventPress) {
			err = ErrBusy
			return
		}
		c.cancelResetLocked()
		c.notice = Notice{Text: "錄音中，放開即發送", Kind: NoticeInfo}
	})
	if err != nil {
		_, _ = c.mic.Stop()
	}
	return err
}

// Release stops recording, transcribes the clip and exchanges the transcript.
func (c *Controller) Release(ctx context.Context) error {
	var (
		err       error
		gen       uint64
		sessionID string
	)
	c.update(func() {
		if !c.fireLocked(EventRelease) {
			err = ErrNotRecording
			return
		}
		gen = c.beginWaitLocked()
		sessionID = c.sessionID
		c.notice = Notice{}
	})
	if err != nil {
		return err
	}

	rec, err := c.mic.Stop()
	if err != nil {
		c.fail(gen, "錄音失敗，請再試一次")
		return fmt.Errorf("stop recording: %w", err)
	}

	mimeType := rec.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	transcript, err := c.backend.SpeechToText(ctx, sessionID, speech.EncodeDataURI(mimeType, rec.Data), c.language)

	var index int
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		return ErrCanceled
	}
	if err != nil {
		c.fail(gen, "語音識別失敗，請再試一次")
		return fmt.Errorf("speech to text: %w", err)
	}

	text := strings.TrimSpace(transcript.Transcript)
	if text == "" {
		c.fail(gen, "聽唔清楚，請再講一次")
		return ErrNoTranscript
	}
	c.update(func() {
		index = c.appendLocked(Message{Role: RoleUser, Text: text, Timestamp: c.now()})
	})
	return c.exchange(ctx, gen, index, text)
}

// Cancel abandons recording or the pending exchange. A late response is ignored.
func (c *Controller) Cancel() bool {
	var (
		canceled bool
		stopMic  bool
	)
	c.update(func() {
		switch c.state {
		case StateListening:
			stopMic = true
		case StateProcessing:
			// 请求继续完成，结果按代数丢弃
			c.gen++
			c.cancelSlowLocked()
		default:
			return
		}
		canceled = c.fireLocked(EventCancel)
		c.notice = Notice{Text: "已取消", Kind: NoticeInfo}
	})

	if stopMic && c.mic != nil {
		_, _ = c.mic.Stop()
	}
	return canceled
}

// Replay plays the last tutor audio again.
func (c *Controller) Replay(ctx context.Context) error {
	var (
		err   error
		audio string
	)
	c.update(func() {
		switch {
		case c.lastAudio == "":
			c.notice = Notice{Text: "暫時未有可重播的導師語音", Kind: NoticeInfo}
			err = ErrNothingToReplay
		case c.playing:
			err = ErrPlaybackBusy
		case c.player == nil || !c.fireLocked(EventReplay):
			err = ErrBusy
		default:
			c.playing = true
			audio = c.lastAudio
		}
	})
	if err != nil {
		return err
	}
	return c.play(ctx, audio)
}

func (c *Controller) exchange(ctx context.Context, gen uint64, index int, text string) error {
	c.mu.Lock()
	req := api.ExchangeRequest{SessionID: c.sessionID, UserText: text, Scenario: c.scenario}
	c.mu.Unlock()

	res, err := c.backend.Exchange(ctx, req)

	var (
		stale bool
		audio string
	)
	c.update(func() {
		if c.gen != gen {
			stale = true
			return
		}
		if err != nil {
			return
		}
		c.cancelSlowLocked()

		if index < len(c.messages) {
			c.messages[index].Corrections = res.Corrections
		}
		c.appendLocked(Message{Role: RoleTutor, Text: res.AIText, Audio: res.TTSAudio, Timestamp: c.now()})
		c.feedback = res.Feedback
		c.notice = Notice{}
		if res.TTSFallback {
			c.notice = Notice{Text: "語音服務暫時唔可用，播放緊模擬音頻", Kind: NoticeInfo}
		}

		if res.TTSAudio == "" || c.player == nil {
			c.fireLocked(EventRepliedMute)
			return
		}
		c.lastAudio = res.TTSAudio
		if c.playing {
			// 上一段音频仍在播放，不叠放
			c.fireLocked(EventRepliedMute)
			return
		}
		c.fireLocked(EventReplied)
		c.playing = true
		audio = res.TTSAudio
	})
	if stale {
		return ErrCanceled
	}
	if err != nil {
		c.fail(gen, "出錯了，請再試一次")
		return fmt.Errorf("exchange: %w", err)
	}
	if audio == "" {
		return nil
	}
	return c.play(ctx, audio)
}

func (c *Controller) play(ctx context.Context, audio string) error {
	c.mu.Lock()
	rate := c.rate
	c.mu.Unlock()

	err := c.player.Play(ctx, audio, rate)

	c.update(func() {
		c.playing = false
		if c.state == StateSpeaking {
			c.fireLocked(EventPlaybackDone)
		}
		if err != nil {
			c.notice = Notice{Text: "音頻播放失敗", Kind: NoticeError}
		}
	})
	if err != nil {
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}

// ensurePermission 依次展示说明框、系统授权和被拒后的重试框。
func (c *Controller) ensurePermission(ctx context.Context) error {
	for attempt := 0; attempt < maxPermissionPrompts; attempt++ {
		perm, err := c.mic.Permission(ctx)
		if err != nil {
			return fmt.Errorf("query microphone permission: %w", err)
		}
		if perm == PermissionGranted {
			return nil
		}

		if perm == PermissionPrompt {
			if c.dialogs != nil && !c.dialogs.ExplainMicrophone(ctx) {
				return ErrMicrophoneBlocked
			}
			perm, err = c.mic.Request(ctx)
			if err != nil {
				return fmt.Errorf("request microphone permission: %w", err)
			}
			if perm == PermissionGranted {
				return nil
			}
		}

		if c.dialogs == nil || !c.dialogs.MicrophoneBlocked(ctx) {
			return ErrMicrophoneBlocked
		}
	}
	return ErrMicrophoneBlocked
}

// beginWaitLocked 进入等待：递增代数并启动"仍在处理"计时器。
func (c *Controller) beginWaitLocked() uint64 {
	c.gen++
	gen := c.gen
	c.cancelResetLocked()
	c.cancelSlowLocked()
	if c.slowThreshold > 0 {
		c.stopSlow = c.afterFunc(c.slowThreshold, func() {
			c.update(func() {
				if c.gen == gen && c.state == StateProcessing {
					c.notice = Notice{Text: "仲處理緊，請稍等…", Kind: NoticeInfo}
				}
			})
		})
	}
	return gen
}

// fail 进入 error 状态，ErrorHold 之后自动回到 idle。gen 为 0 时不检查代数。
func (c *Controller) fail(gen uint64, message string) {
	c.update(func() {
		if gen != 0 && c.gen != gen {
			return
		}
		c.cancelSlowLocked()
		if !c.fireLocked(EventFail) {
			return
		}
		c.notice = Notice{Text: message, Kind: NoticeError}

		c.cancelResetLocked()
		c.gen++
		token := c.gen
		c.stopReset = c.afterFunc(c.errorHold, func() {
			c.update(func() {
				if c.gen == token && c.state == StateError {
					c.fireLocked(EventReset)
				}
			})
		})
	})
}

func (c *Controller) cancelSlowLocked() {
	if c.stopSlow != nil {
		c.stopSlow()
		c.stopSlow = nil
	}
}

func (c *Controller) cancelResetLocked() {
	if c.stopReset != nil {
		c.stopReset()
		c.stopReset = nil
	}
}

func (c *Controller) appendLocked(m Message) int {
	c.messages = append(c.messages, m)
	return len(c.messages) - 1
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
