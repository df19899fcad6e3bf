package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/zhikangxie107/transcribe/internal/api/handlers"
	"github.com/zhikangxie107/transcribe/internal/api/middleware"
	"github.com/zhikangxie107/transcribe/internal/auth"
	"github.com/zhikangxie107/transcribe/internal/cache"
	"github.com/zhikangxie107/transcribe/internal/config"
	"github.com/zhikangxie107/transcribe/internal/queue"
	"github.com/zhikangxie107/transcribe/internal/recognizer"
	"github.com/zhikangxie107/transcribe/internal/transcript"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	jwt    *auth.JWTMiddleware
	engine recognizer.Engine
}

// NewRouter wires the service graph. rdb may be nil when redis is
// unavailable; caching and the signup side-effect queue are skipped then.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, engine recognizer.Engine, cfg *config.Config) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		engine: engine,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.Origins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis, rt.engine)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	identity := auth.NewIdentityClient(auth.IdentityConfig{
		BaseURL: rt.cfg.Auth.IdentityBaseURL,
		APIKey:  rt.cfg.Auth.IdentityAPIKey,
	})

	var queueClient *queue.Client
	var readCache *cache.Cache
	if rt.redis != nil {
		queueClient = queue.NewClient(rt.cfg.Redis)
		readCache = cache.NewCache(rt.redis)
	}

	repo := transcript.NewRepository(rt.db)
	svc := transcript.NewService(repo, rt.engine, readCache)

	// Auth routes
	authH := handlers.NewAuthHandler(identity, queueClient)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authH.SignUp)
		r.Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)
			r.Get("/me", authH.Me)
		})
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		transcriptH := handlers.NewTranscriptHandler(svc)
		r.Route("/transcripts", func(r chi.Router) {
			r.Post("/", transcriptH.Create)
			r.Get("/", transcriptH.List)
			r.Get("/{id}", transcriptH.Get)
			r.Patch("/{id}", transcriptH.Update)
			r.Delete("/{id}", transcriptH.Delete)
			r.Post("/transcribe", transcriptH.Transcribe)
		})
	})

	return r
}
