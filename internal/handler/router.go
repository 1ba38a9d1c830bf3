package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler/health"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler/scenario"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler/session"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler/speech"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/handler/tutor"
	middlewarePkg "github.com/zhouzirui/cantonese-tutor/backend/internal/middleware"
	scenarioModel "github.com/zhouzirui/cantonese-tutor/backend/internal/model/scenario"
)

// Options 汇总路由依赖的服务
type Options struct {
	Version       string
	ClientOrigins []string
	MaxBodyBytes  int64

	Scenarios   scenarioModel.Store
	Sessions    session.Store
	Transcriber speech.Transcriber
	Tutor       tutor.Responder
	Providers   health.Providers
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middlewarePkg.Recover)
	r.Use(middlewarePkg.CORS(opts.ClientOrigins))
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(opts.MaxBodyBytes))
	}

	r.Route("/api", func(api chi.Router) {
		health.New(opts.Version, opts.Providers).RegisterRoutes(api)
		scenario.New(opts.Scenarios).RegisterRoutes(api)
		session.New(opts.Sessions).RegisterRoutes(api)
		speech.New(opts.Transcriber).RegisterRoutes(api)
		tutor.New(opts.Tutor).RegisterRoutes(api)
	})

	return r
}
