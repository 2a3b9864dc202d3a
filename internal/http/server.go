package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dani-ai/dani/internal/cache"
	"github.com/dani-ai/dani/internal/config"
	"github.com/dani-ai/dani/internal/github"
	"github.com/dani-ai/dani/internal/http/middleware"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/metrics"
	"github.com/dani-ai/dani/internal/repository"
	"github.com/dani-ai/dani/internal/service/gate"
	"github.com/dani-ai/dani/internal/service/keys"
	"github.com/dani-ai/dani/internal/service/playground"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Keys    repository.APIKeysRepository
	Redis   *redis.Client // optional: list cache and RPS limiter are skipped without it
	Fetcher github.ReadmeFetcher
}

func NewServer(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client) *Server {
	return NewServerWithDeps(cfg, Deps{
		Keys:  repository.NewAPIKeysRepository(mysqlDB),
		Redis: rds,
		Fetcher: github.NewClient(
			cfg.GitHub.BaseURL,
			github.WithRateLimit(cfg.GitHub.RPS, cfg.GitHub.Burst),
		),
	})
}

func NewServerWithDeps(cfg config.Config, d Deps) *Server {
	var lists cache.KeyListCache
	if d.Redis != nil {
		lists = cache.NewRedisKeyListCache(d.Redis, cfg.Keys.CacheTTL)
	}

	// services
	usageGate := gate.New(d.Keys, cfg.Gate.AtomicIncrement)
	keysSvc := keys.New(d.Keys, lists)
	playgroundSvc := playground.New(usageGate, d.Fetcher, lists)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	ownerMW := middleware.OwnerMiddleware([]byte(cfg.Auth.JWTSecret))
	apiKeyMW := middleware.APIKeyMiddleware(usageGate)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:key:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// dashboard routes
	v1 := e.Group("/v1", ownerMW)
	v1.GET("/keys", listKeysHandler(keysSvc))
	v1.POST("/keys", createKeyHandler(keysSvc))
	v1.PATCH("/keys/:id", renameKeyHandler(keysSvc))
	v1.DELETE("/keys/:id", deleteKeyHandler(keysSvc))
	v1.GET("/keys/:id/reveal", revealKeyHandler(keysSvc))
	v1.GET("/dashboard", dashboardHandler(keysSvc))
	v1.POST("/playground", playgroundHandler(playgroundSvc))

	// public gated api
	api := e.Group("/api", apiKeyMW, rlMW)
	api.POST("/github-summarizer", summarizerHandler(playgroundSvc))

	return &Server{e: e}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
