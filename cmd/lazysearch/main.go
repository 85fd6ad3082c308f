package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazysearch"
	"github.com/kailas-cloud/lazysearch/internal/config"
	dbRedis "github.com/kailas-cloud/lazysearch/internal/db/redis"
	"github.com/kailas-cloud/lazysearch/internal/engine/memory"
	logpkg "github.com/kailas-cloud/lazysearch/internal/logger"
	"github.com/kailas-cloud/lazysearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/lazysearch/internal/transport/chi"
	"github.com/kailas-cloud/lazysearch/internal/transport/elastic"
	healthuc "github.com/kailas-cloud/lazysearch/internal/usecase/health"
	"github.com/kailas-cloud/lazysearch/internal/version"
)

// engine is what the server needs from the base transport.
type engine interface {
	lazysearch.Transport
	healthuc.Pinger
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lazysearch server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("search_driver", cfg.Search.Driver),
		zap.Strings("search_addrs", cfg.Search.Addrs),
		zap.Bool("search_disabled", cfg.Search.Disabled),
	)

	base, err := buildEngine(cfg.Search, logger)
	if err != nil {
		logger.Fatal("Failed to create search engine", zap.Error(err))
	}

	opts := []lazysearch.Option{
		lazysearch.WithTransport(base),
		lazysearch.WithIndexes(cfg.Search.Indexes),
		lazysearch.WithIDField(cfg.Search.IDField),
		lazysearch.WithTimeout(time.Duration(cfg.Search.TimeoutSec) * time.Second),
		lazysearch.WithDisabled(cfg.Search.Disabled),
		lazysearch.WithLogger(logger),
		lazysearch.WithMetrics(prometheus.DefaultRegisterer),
	}
	for mapping, fields := range cfg.Search.QueryFields {
		opts = append(opts, lazysearch.WithQueryFields(mapping, fields...))
	}
	if cfg.Search.MaxRetries > 0 {
		opts = append(opts, lazysearch.WithRetry(
			cfg.Search.MaxRetries, time.Duration(cfg.Search.RetryWaitMs)*time.Millisecond,
		))
	}

	components := []healthuc.Component{{Name: "engine", Pinger: base, Critical: true}}

	// Response cache
	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache")

		opts = append(opts, lazysearch.WithResponseCache(
			store, time.Duration(cfg.Cache.TTLSec)*time.Second, cfg.Cache.KeyPrefix,
		))
		components = append(components, healthuc.Component{Name: "cache", Pinger: store})
	}

	client, err := lazysearch.New(opts...)
	if err != nil {
		logger.Fatal("Failed to create search client", zap.Error(err))
	}

	server := chiTransport.NewServer(client, healthuc.New(components...), logger).
		WithPagination(cfg.HTTP.DefaultPageSize, cfg.HTTP.MaxPageSize)

	httpMetrics, err := metrics.RegisterHTTP(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(httpMetrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEngine creates the base transport for the configured driver.
func buildEngine(cfg config.SearchConfig, logger *zap.Logger) (engine, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		e := memory.New()
		if cfg.SeedFile != "" {
			n, err := e.LoadFile(cfg.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("seed memory engine: %w", err)
			}
			logger.Info("Seeded memory engine", zap.String("file", cfg.SeedFile), zap.Int("records", n))
		}
		return e, nil
	default:
		t, err := elastic.New(elastic.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		return t, nil
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
