package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/repurpoai/pharmintel/config"
	agentcore "github.com/repurpoai/pharmintel/internal/agent/core"
	agenttele "github.com/repurpoai/pharmintel/internal/agent/telemetry"
	"github.com/repurpoai/pharmintel/internal/agents"
	"github.com/repurpoai/pharmintel/internal/runtime"
	"github.com/repurpoai/pharmintel/internal/search"
	"github.com/repurpoai/pharmintel/internal/store"
)

// Run starts the API server on addr, falling back to the configured listen
// address when addr is empty.
func Run(addr string, cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	// a broken database is a fatal startup condition
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	tele := agenttele.NewTelemetry(cfg.Telemetry)
	provider, err := agentcore.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}

	// optional redis-backed cache for upstream tool responses
	var cache agentcore.ToolCache
	if cfg.Sources.ToolCacheEnabled {
		rdbAddr := cfg.Storage.Redis.Addr()
		if rdbAddr == "" {
			return fmt.Errorf("tool cache enabled but redis not configured (storage.redis.host)")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     rdbAddr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", rdbAddr, err)
		}
		cache = agentcore.NewRedisToolCache(rdb, cfg.Sources.ToolCacheTTL)
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	deps := agents.NewDeps(*cfg, provider, tele, cache, orchLogger)

	idx, err := search.Open(cfg.General.SearchIndexPath)
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	auth, err := initAuth(ctx, st, secret)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	mh := &MessagesHandler{Store: st, Index: idx, Logger: baseLogger}
	mh.Register(api.Group(""), secret)

	dh := &DownloadsHandler{Store: st}
	dh.Register(api.Group("/downloads"), secret)

	ah := &AnalysisHandler{Deps: deps}
	ah.Register(api.Group("/analysis"), secret)

	wsLogger := log.New(log.Writer(), "[WS] ", log.LstdFlags)
	wsh := &WSHandler{Deps: deps, Store: st, Index: idx, Secret: secret, Logger: wsLogger}
	wsh.Register(e)

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
	}
	return e.Start(addr)
}
