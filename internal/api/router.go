package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/visaprep/internal/api/handlers"
	"github.com/nikhilbhutani/visaprep/internal/api/middleware"
	"github.com/nikhilbhutani/visaprep/internal/auth"
	"github.com/nikhilbhutani/visaprep/internal/config"
	"github.com/nikhilbhutani/visaprep/internal/interview"
)

type Router struct {
	mux     *chi.Mux
	db      *pgxpool.Pool
	redis   *redis.Client
	cfg     *config.Config
	svc     *interview.Service
	cookies *auth.SessionCookies
	limiter *middleware.RateLimiter
}

// NewRouter wires the HTTP surface. db and rdb are optional and only used by
// the readiness check.
func NewRouter(cfg *config.Config, svc *interview.Service, cookies *auth.SessionCookies, db *pgxpool.Pool, rdb *redis.Client) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		db:      db,
		redis:   rdb,
		cfg:     cfg,
		svc:     svc,
		cookies: cookies,
		limiter: middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	r.Use(rt.limiter.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	h := handlers.NewInterviewHandler(rt.svc, rt.cfg.Server.MaxUploadBytes)
	r.Route("/api", func(r chi.Router) {
		r.Use(rt.cookies.Middleware)

		r.Post("/start-interview", h.Start)
		r.Post("/next-question", h.NextQuestion)
		r.Post("/process-voice-response", h.ProcessVoiceResponse)
		r.Post("/finalize-interview", h.Finalize)
		r.Post("/send-email", h.SendEmail)
		r.Post("/question-audio", h.QuestionAudio)
		r.Delete("/session", h.Reset)
	})

	return r
}

// Close releases background resources held by the middleware.
func (rt *Router) Close() {
	rt.limiter.Close()
}
