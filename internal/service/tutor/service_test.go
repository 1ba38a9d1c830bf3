package tutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/cache"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/feedback"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/mock"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/session"
)

type firstChooser struct{}

func (firstChooser) IntN(int) int { return 0 }

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	messages []ai.Message
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (f *fakeSynthesizer) Name() string { return "fake-tts" }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{AudioData: []byte("mp3:" + req.Text), MimeType: "audio/mpeg"}, nil
}

type harness struct {
	svc       *Service
	store     *session.Store
	cache     *cache.AudioCache
	responder *mock.Responder
}

func newHarness(opts ...Option) harness {
	store := session.NewStore()
	audioCache := cache.NewAudioCache(cache.DefaultSize)
	responder := mock.NewResponder(firstChooser{})
	return harness{
		svc:       NewService(store, audioCache, responder, opts...),
		store:     store,
		cache:     audioCache,
		responder: responder,
	}
}

func TestRespondRequiresSessionID(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Respond(context.Background(), Request{SessionID: "  ", UserText: "你好"})
	if !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
	if h.store.Len() != 0 {
		t.Fatalf("store should be untouched, has %d sessions", h.store.Len())
	}
	if h.cache.Len() != 0 {
		t.Fatalf("cache should be untouched, has %d entries", h.cache.Len())
	}
}

func TestRespondRestaurantScenarioWithMocks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sess := h.store.Create(ctx)

	res, err := h.svc.Respond(ctx, Request{SessionID: sess.ID, UserText: "你好", Scenario: "餐廳點餐 (At the Restaurant)"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	if res.AIText == "" || res.Feedback == "" {
		t.Fatalf("expected reply and feedback, got %+v", res)
	}
	if !strings.HasPrefix(res.TTSAudio, "data:audio/") || !strings.Contains(res.TTSAudio, ";base64,") {
		t.Fatalf("unexpected audio payload: %s", res.TTSAudio)
	}
	if len(res.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(res.History))
	}
	if res.History[0].Text != "你好" || res.History[0].Scenario != "餐廳點餐 (At the Restaurant)" || res.History[1].Text != res.AIText {
		t.Fatalf("unexpected history: %+v", res.History)
	}
	if res.TTSProvider != "mock" || res.TTSFallback || res.LLMProvider != "mock" || res.LLMFallback {
		t.Fatalf("unexpected provider flags: %+v", res)
	}
	if res.Corrections == nil {
		t.Fatal("corrections should be an empty list, not nil")
	}
}

func TestRespondUnknownSessionAutoCreates(t *testing.T) {
	h := newHarness()

	res, err := h.svc.Respond(context.Background(), Request{SessionID: "never-created", UserText: "早晨"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if len(res.History) != 2 {
		t.Fatalf("expected fresh history with 2 entries, got %d", len(res.History))
	}
}

func TestRespondHistoryCappedAfterManyTurns(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	var last *Result
	for i := 0; i < 25; i++ {
		res, err := h.svc.Respond(ctx, Request{SessionID: "s", UserText: strings.Repeat("講", i+1)})
		if err != nil {
			t.Fatalf("Respond %d err: %v", i, err)
		}
		last = res
	}

	if len(last.History) != session.DefaultHistoryLimit {
		t.Fatalf("expected %d entries, got %d", session.DefaultHistoryLimit, len(last.History))
	}
	if last.History[0].Text != strings.Repeat("講", 16) {
		t.Fatalf("oldest kept turn should be exchange 16, got %q", last.History[0].Text)
	}
	if last.History[len(last.History)-2].Text != strings.Repeat("講", 25) {
		t.Fatalf("newest user turn should be exchange 25, got %q", last.History[len(last.History)-2].Text)
	}
}

func TestRespondUsesLLMWithRecentContext(t *testing.T) {
	llm := &fakeLLM{reply: " 好啊，你想食咩？ "}
	h := newHarness(WithLLM(llm, time.Second), WithLimits(Limits{ContextTurns: 4}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Respond(ctx, Request{SessionID: "s", UserText: "我想點餐"}); err != nil {
			t.Fatalf("Respond err: %v", err)
		}
	}

	res, err := h.svc.Respond(ctx, Request{SessionID: "s", UserText: "一杯奶茶", Scenario: "餐廳點餐 (At the Restaurant)"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if res.AIText != "好啊，你想食咩？" || res.LLMProvider != "fake-llm" || res.LLMFallback {
		t.Fatalf("unexpected llm result: %+v", res)
	}

	llm.mu.Lock()
	defer llm.mu.Unlock()
	if len(llm.messages) != 6 {
		t.Fatalf("expected system + 4 context + user, got %d", len(llm.messages))
	}
	if llm.messages[0].Role != ai.RoleSystem || !strings.Contains(llm.messages[0].Content, "餐廳點餐") {
		t.Fatalf("system prompt should carry scenario: %+v", llm.messages[0])
	}
	if last := llm.messages[5]; last.Role != ai.RoleUser || last.Content != "一杯奶茶" {
		t.Fatalf("unexpected final message: %+v", last)
	}
}

func TestRespondZeroContextTurnsSendsOnlyCurrentUtterance(t *testing.T) {
	llm := &fakeLLM{reply: "好啊"}
	h := newHarness(WithLLM(llm, time.Second), WithLimits(Limits{MaxUserText: 400}), WithContextTurns(0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Respond(ctx, Request{SessionID: "s", UserText: "我想點餐"}); err != nil {
			t.Fatalf("Respond err: %v", err)
		}
	}

	llm.mu.Lock()
	defer llm.mu.Unlock()
	if len(llm.messages) != 2 {
		t.Fatalf("expected system + user only, got %d", len(llm.messages))
	}
	if llm.messages[0].Role != ai.RoleSystem || llm.messages[1].Role != ai.RoleUser {
		t.Fatalf("unexpected roles: %+v", llm.messages)
	}
}

func TestRespondLLMFailureFallsBackToMock(t *testing.T) {
	cases := []*fakeLLM{
		{err: errors.New("503")},
		{reply: "   "},
	}
	for _, llm := range cases {
		h := newHarness(WithLLM(llm, time.Second))

		res, err := h.svc.Respond(context.Background(), Request{SessionID: "s", UserText: "你好"})
		if err != nil {
			t.Fatalf("Respond err: %v", err)
		}
		want := h.responder.Reply("你好", "")
		if res.AIText != want {
			t.Fatalf("expected mock reply %q, got %q", want, res.AIText)
		}
		if !res.LLMFallback || res.LLMProvider != "mock" {
			t.Fatalf("expected llm fallback flags, got %+v", res)
		}
	}
}

func TestRespondEmptyTextSkipsLLM(t *testing.T) {
	llm := &fakeLLM{reply: "unused"}
	h := newHarness(WithLLM(llm, time.Second))

	res, err := h.svc.Respond(context.Background(), Request{SessionID: "s", UserText: "   "})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("llm should not be called for empty text, got %d calls", llm.calls)
	}
	if !strings.Contains(res.AIText, "你可以先講講你想練習嘅內容。") {
		t.Fatalf("expected prompt-to-speak reply, got %q", res.AIText)
	}
	if len(res.History) != 2 || res.History[0].Text != "" {
		t.Fatalf("both turns should still be appended: %+v", res.History)
	}
}

func TestRespondCachesSynthesizedAudio(t *testing.T) {
	llm := &fakeLLM{reply: "好啊"}
	synth := &fakeSynthesizer{}
	h := newHarness(WithLLM(llm, time.Second), WithSynthesizer(synth, time.Second))
	ctx := context.Background()

	first, err := h.svc.Respond(ctx, Request{SessionID: "a", UserText: "你好"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	second, err := h.svc.Respond(ctx, Request{SessionID: "b", UserText: "你好"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	if synth.calls != 1 {
		t.Fatalf("identical reply should hit the cache, got %d synth calls", synth.calls)
	}
	if first.TTSCached || !second.TTSCached {
		t.Fatalf("unexpected cached flags: %t %t", first.TTSCached, second.TTSCached)
	}
	if first.TTSAudio != second.TTSAudio || !strings.HasPrefix(first.TTSAudio, "data:audio/mpeg;base64,") {
		t.Fatalf("unexpected audio payloads: %s / %s", first.TTSAudio, second.TTSAudio)
	}
	if second.TTSProvider != "fake-tts" || second.TTSLatency != 0 {
		t.Fatalf("cache hit should report provider with zero latency: %+v", second)
	}
}

func TestRespondSynthesisFailureFallsBack(t *testing.T) {
	synth := &fakeSynthesizer{err: errors.New("azure tts error 401")}
	h := newHarness(WithSynthesizer(synth, time.Second))

	res, err := h.svc.Respond(context.Background(), Request{SessionID: "s", UserText: "你好"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if res.TTSAudio != mock.SilentAudio {
		t.Fatalf("expected mock audio, got %s", res.TTSAudio)
	}
	if !res.TTSFallback || res.TTSProvider != "mock" || res.TTSError != "azure tts error 401" {
		t.Fatalf("unexpected fallback flags: %+v", res)
	}
	if h.cache.Len() != 0 {
		t.Fatal("fallback audio must not be cached")
	}
}

func TestRespondSynthesisTimeoutFallsBack(t *testing.T) {
	synth := &fakeSynthesizer{block: true}
	h := newHarness(WithSynthesizer(synth, 20*time.Millisecond))

	res, err := h.svc.Respond(context.Background(), Request{SessionID: "s", UserText: "你好"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if !res.TTSFallback || res.TTSAudio != mock.SilentAudio {
		t.Fatalf("timeout should fall back to mock audio: %+v", res)
	}
}

func TestRespondTruncatesInput(t *testing.T) {
	h := newHarness()

	res, err := h.svc.Respond(context.Background(), Request{
		SessionID: "s",
		UserText:  strings.Repeat("啊", 500),
		Scenario:  strings.Repeat("景", 200),
	})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	user := res.History[0]
	if got := len([]rune(user.Text)); got != 400 {
		t.Fatalf("user text should be 400 runes, got %d", got)
	}
	if got := len([]rune(user.Scenario)); got != 120 {
		t.Fatalf("scenario should be 120 runes, got %d", got)
	}
}

type fakeCritic struct{}

func (fakeCritic) Evaluate(ctx context.Context, userText, scenario string) feedback.Result {
	return feedback.Result{Text: "好自然！", Source: feedback.SourceLLM}
}

func TestRespondUsesCritic(t *testing.T) {
	h := newHarness(WithCritic(fakeCritic{}))

	res, err := h.svc.Respond(context.Background(), Request{SessionID: "s", UserText: "你好"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if res.Feedback != "好自然！" {
		t.Fatalf("unexpected feedback: %q", res.Feedback)
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{in: "你好嗎", n: 2, want: "你好"},
		{in: "abc", n: 5, want: "abc"},
		{in: "abc", n: 0, want: "abc"},
		{in: "", n: 3, want: ""},
	}
	for _, tc := range cases {
		if got := truncateRunes(tc.in, tc.n); got != tc.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
