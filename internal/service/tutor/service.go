// Package tutor runs one conversation exchange: reply, feedback, history and spoken audio.
package tutor

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/analysis/colloquial"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/cache"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/feedback"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
)

// ErrSessionIDRequired is returned when an exchange arrives without a session id.
var ErrSessionIDRequired = errors.New("sessionId is required")

const (
	defaultContextTurns    = 10
	defaultMaxUserText     = 400
	defaultMaxScenarioText = 120
	defaultLLMTimeout      = 8 * time.Second
	defaultSpeechTimeout   = 6 * time.Second
)

// SessionStore holds per-session history.
type SessionStore interface {
	History(ctx context.Context, sessionID string) []chat.Turn
	Append(ctx context.Context, sessionID string, turns ...chat.Turn) []chat.Turn
}

// AudioCache stores synthesized audio by normalized reply text.
type AudioCache interface {
	Lookup(key string) (string, bool)
	Store(key, payload string)
}

// Responder supplies mock output whenever a provider is unavailable.
type Responder interface {
	Reply(userText, scenario string) string
	Feedback(userText string) string
	Audio() string
}

// Critic evaluates the learner's utterance.
type Critic interface {
	Evaluate(ctx context.Context, userText, scenario string) feedback.Result
}

// Request is one raw exchange request.
type Request struct {
	SessionID string
	UserText  string
	Scenario  string
}

// Result is the composite outcome of an exchange.
type Result struct {
	AIText      string                  `json:"aiText"`
	Feedback    string                  `json:"feedback"`
	Corrections []colloquial.Correction `json:"corrections"`
	TTSAudio    string                  `json:"ttsAudio"`
	History     []chat.Turn             `json:"history"`
	LatencyMs   int64                   `json:"latencyMs"`
	LLMProvider string                  `json:"llmProvider"`
	LLMFallback bool                    `json:"llmFallback"`
	TTSProvider string                  `json:"ttsProvider"`
	TTSLatency  int64                   `json:"ttsLatency"`
	TTSError    string                  `json:"ttsError,omitempty"`
	TTSFallback bool                    `json:"ttsFallback"`
	TTSCached   bool                    `json:"ttsCached"`
}

// Limits bounds the input and the LLM context of an exchange.
type Limits struct {
	ContextTurns    int
	MaxUserText     int
	MaxScenarioText int
}

// Service orchestrates an exchange across the session store, LLM, critic, cache and synthesizer.
type Service struct {
	sessions  SessionStore
	cache     AudioCache
	responder Responder

	llm           ai.Client
	llmTimeout    time.Duration
	critic        Critic
	synthesizer   speech.Synthesizer
	speechTimeout time.Duration

	prompt ai.TutorPrompt
	limits Limits
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLLM enables LLM replies bounded by timeout.
func WithLLM(client ai.Client, timeout time.Duration) Option {
	return func(s *Service) {
		s.llm = client
		if timeout > 0 {
			s.llmTimeout = timeout
		}
	}
}

// WithCritic sets the feedback evaluator.
func WithCritic(critic Critic) Option {
	return func(s *Service) {
		s.critic = critic
	}
}

// WithSynthesizer enables real speech synthesis bounded by timeout.
func WithSynthesizer(synth speech.Synthesizer, timeout time.Duration) Option {
	return func(s *Service) {
		s.synthesizer = synth
		if timeout > 0 {
			s.speechTimeout = timeout
		}
	}
}

// WithLimits overrides the input and context bounds. Zero fields keep defaults;
// use WithContextTurns to disable history context.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		if l.ContextTurns > 0 {
			s.limits.ContextTurns = l.ContextTurns
		}
		if l.MaxUserText > 0 {
			s.limits.MaxUserText = l.MaxUserText
		}
		if l.MaxScenarioText > 0 {
			s.limits.MaxScenarioText = l.MaxScenarioText
		}
	}
}

// WithContextTurns sets how many history turns the LLM sees. 0 sends only the current utterance.
func WithContextTurns(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.limits.ContextTurns = n
		}
	}
}

// WithPrompt replaces the tutor persona and style rules.
func WithPrompt(p ai.TutorPrompt) Option {
	return func(s *Service) {
		s.prompt = p
	}
}

// WithClock overrides the timestamp source for turns.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the orchestrator. Without WithLLM or WithSynthesizer every reply and
// audio payload comes from the responder.
func NewService(sessions SessionStore, audioCache AudioCache, responder Responder, opts ...Option) *Service {
	s := &Service{
		sessions:      sessions,
		cache:         audioCache,
		responder:     responder,
		llmTimeout:    defaultLLMTimeout,
		speechTimeout: defaultSpeechTimeout,
		prompt:        ai.DefaultTutorPrompt(),
		limits: Limits{
			ContextTurns:    defaultContextTurns,
			MaxUserText:     defaultMaxUserText,
			MaxScenarioText: defaultMaxScenarioText,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LLMProvider reports the reply provider, "mock" when none is configured.
func (s *Service) LLMProvider() string {
	if s.llm == nil {
		return speechmodel.ProviderMock
	}
	return s.llm.Name()
}

// Respond runs one exchange. Only a missing session id is an error; provider failures fall back to mock output.
func (s *Service) Respond(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	userText := strings.TrimSpace(truncateRunes(req.UserText, s.limits.MaxUserText))
	scenario := strings.TrimSpace(truncateRunes(req.Scenario, s.limits.MaxScenarioText))

	history := s.sessions.History(ctx, sessionID)

	critique := make(chan feedback.Result, 1)
	go func() {
		critique <- s.evaluate(ctx, userText, scenario)
	}()

	reply, llmProvider, llmFallback := s.reply(ctx, history, userText, scenario)
	fb := <-critique

	now := s.now()
	updated := s.sessions.Append(ctx, sessionID,
		chat.UserTurn(userText, scenario, now),
		chat.AssistantTurn(reply, now),
	)

	result := &Result{
		AIText:      reply,
		Feedback:    fb.Text,
		Corrections: fb.Corrections,
		History:     updated,
		LLMProvider: llmProvider,
		LLMFallback: llmFallback,
	}
	if result.Corrections == nil {
		result.Corrections = []colloquial.Correction{}
	}
	s.speak(ctx, sessionID, reply, result)

	result.LatencyMs = time.Since(started).Milliseconds()
	log.Printf("[tutor] session=%s llm=%s fallback=%t tts=%s cached=%t latency=%dms",
		sessionID, result.LLMProvider, result.LLMFallback, result.TTSProvider, result.TTSCached, result.LatencyMs)
	return result, nil
}

func (s *Service) reply(ctx context.Context, history []chat.Turn, userText, scenario string) (string, string, bool) {
	if s.llm == nil || userText == "" {
		return s.responder.Reply(userText, scenario), speechmodel.ProviderMock, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	messages := s.prompt.BuildMessages(scenario, history, s.limits.ContextTurns, userText)
	text, err := s.llm.Generate(ctx, messages)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ai.ErrEmptyResponse
	}
	if err != nil {
		log.Printf("[llm] %s reply failed, falling back to mock: %v", s.llm.Name(), err)
		return s.responder.Reply(userText, scenario), speechmodel.ProviderMock, true
	}
	return strings.TrimSpace(text), s.llm.Name(), false
}

func (s *Service) evaluate(ctx context.Context, userText, scenario string) feedback.Result {
	if s.critic == nil {
		return feedback.Result{
			Text:        s.responder.Feedback(userText),
			Corrections: colloquial.Analyze(userText),
			Source:      feedback.SourceMock,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	res := s.critic.Evaluate(ctx, userText, scenario)
	if strings.TrimSpace(res.Text) == "" {
		res.Text = s.responder.Feedback(userText)
	}
	return res
}

// speak fills the audio fields of result from the cache, the synthesizer or the mock payload.
func (s *Service) speak(ctx context.Context, sessionID, reply string, result *Result) {
	result.TTSProvider = speechmodel.ProviderMock
	result.TTSAudio = s.responder.Audio()

	if s.synthesizer == nil {
		return
	}

	key := cache.Key(reply)
	if payload, ok := s.cache.Lookup(key); ok {
		result.TTSAudio = payload
		result.TTSProvider = s.synthesizer.Name()
		result.TTSCached = true
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.speechTimeout)
	defer cancel()

	started := time.Now()
	resp, err := s.synthesizer.Synthesize(ctx, &speechmodel.TTSRequest{SessionID: sessionID, Text: reply})
	result.TTSLatency = time.Since(started).Milliseconds()
	if err == nil && (resp == nil || len(resp.AudioData) == 0) {
		err = errors.New("synthesizer returned empty audio")
	}
	if err != nil {
		log.Printf("[tts] %s failed after %dms, falling back to mock: %v", s.synthesizer.Name(), result.TTSLatency, err)
		result.TTSError = err.Error()
		result.TTSFallback = true
		return
	}

	mimeType := resp.MimeType
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	payload := speech.EncodeDataURI(mimeType, resp.AudioData)
	s.cache.Store(key, payload)
	result.TTSAudio = payload
	result.TTSProvider = s.synthesizer.Name()
}

// truncateRunes keeps at most n runes of s. n <= 0 means unbounded.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
