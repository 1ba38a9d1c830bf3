package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/config"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/scenario"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/cache"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/feedback"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/mock"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/session"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/tutor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 会话存储与过期清理
	sessions := session.NewStore(session.WithHistoryLimit(cfg.Tutor.HistoryLimit))
	sweeper := session.NewSweeper(sessions, cfg.Session.TTL, cfg.Session.SweepSpec)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start session sweeper: %v", err)
	}
	defer sweeper.Stop()

	responder := mock.NewResponder(nil)

	// Initialize LLM client
	llm, err := ai.NewClient(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize LLM client: %v", err)
		log.Println("continuing with mock replies - 请检查 LLM_* 相关环境变量")
		llm = nil
	} else if llm != nil {
		log.Printf("LLM client initialized: %s", llm.Name())
	} else {
		log.Println("LLM 未配置，使用模拟回复")
	}

	// 点评：开启时使用第二次 LLM 调用，否则只用启发式提示
	var critic ai.Client
	if cfg.AI.FeedbackEnabled && llm != nil {
		critic = llm
	}
	feedbackSvc := feedback.NewService(critic, responder)
	if feedbackSvc.Enabled() {
		log.Println("LLM feedback enabled")
	} else {
		log.Println("LLM feedback disabled, using heuristic hints")
	}

	// Initialize Speech service
	speechSvc := speech.NewService(cfg.Speech.Model(), responder)
	log.Printf("Speech providers: tts=%s stt=%s", speechSvc.TTSProvider(), speechSvc.STTProvider())

	tutorOpts := []tutor.Option{
		tutor.WithCritic(feedbackSvc),
		tutor.WithLimits(tutor.Limits{
			MaxUserText:     cfg.Tutor.MaxUserText,
			MaxScenarioText: cfg.Tutor.MaxScenarioText,
		}),
		tutor.WithContextTurns(cfg.Tutor.ContextTurns),
	}
	if llm != nil {
		tutorOpts = append(tutorOpts, tutor.WithLLM(llm, cfg.AI.Timeout))
	}
	if synth := speechSvc.Synthesizer(); synth != nil {
		tutorOpts = append(tutorOpts, tutor.WithSynthesizer(synth, cfg.Speech.Timeout))
	}
	tutorSvc := tutor.NewService(sessions, cache.NewAudioCache(cfg.Tutor.CacheSize), responder, tutorOpts...)

	router := handler.NewRouter(handler.Options{
		Version:       cfg.Server.Version,
		ClientOrigins: cfg.Server.ClientOrigins,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Scenarios:     scenario.NewMemoryStore(scenario.Seed()),
		Sessions:      sessions,
		Transcriber:   speechSvc,
		Tutor:         tutorSvc,
		Providers:     providers{speech: speechSvc, tutor: tutorSvc},
	})

	startServer(ctx, cfg.Server, router)
}

// providers 汇总健康检查需要的提供方名称
type providers struct {
	speech *speech.Service
	tutor  *tutor.Service
}

func (p providers) TTSProvider() string { return p.speech.TTSProvider() }
func (p providers) LLMProvider() string { return p.tutor.LLMProvider() }

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Cantonese tutor backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
