package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gauge/internal/installtoken"
	"gauge/internal/metrics"
	"gauge/internal/ratelimit"
	"gauge/internal/util"
	"gauge/pkg/ai"
	"gauge/pkg/storage"
	"gauge/pkg/store"
	"gauge/services/stylist/internal/app"
	"gauge/services/stylist/internal/config"
	"gauge/services/stylist/internal/server"
)

const rateWindow = time.Minute

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := newStore(cfg)
	if err != nil {
		util.Fatal("failed to init store", "backend", cfg.StoreBackend, "err", err)
	}
	objects, err := newObjectStore(cfg)
	if err != nil {
		util.Fatal("failed to init object storage", "err", err)
	}
	generator, err := newGenerator(cfg)
	if err != nil {
		util.Fatal("failed to init generator", "provider", cfg.GenerationProvider, "err", err)
	}
	recorder := metrics.New(cfg.MetricsEnabled)

	activeWindow, _ := config.ParseDuration("sessionActiveWindow", cfg.SessionActiveWindow)
	appCore, err := app.New(app.Config{
		Store:               dataStore,
		Objects:             objects,
		Generator:           generator,
		Metrics:             recorder,
		FreeChecks:          *cfg.FreeChecks,
		FreeChatMessages:    *cfg.FreeChatMessages,
		HistoryLimit:        cfg.HistoryLimit,
		SessionActiveWindow: activeWindow,
		MaxImageBytes:       cfg.MaxImageBytes,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	tokenTTL, _ := config.ParseDuration("installTokenTTL", cfg.InstallTokenTTL)
	tokens, err := installtoken.NewIssuer(installtoken.Options{
		Secret: cfg.InstallTokenSecret,
		TTL:    tokenTTL,
	})
	if err != nil {
		util.Fatal("failed to init installation tokens", "err", err)
	}
	limiter, err := newLimiter(cfg, "model", cfg.RateLimitPerMinute)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}
	installLimiter, err := newLimiter(cfg, "installations", cfg.RateLimitPerMinute)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Tokens:         tokens,
		Limiter:        limiter,
		InstallLimiter: installLimiter,
		Metrics:        recorder,
		TrustedProxies: trusted,
		MaxImageBytes:  cfg.MaxImageBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := newHTTPServer(addr, httpServer.Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("stylist server listening", "addr", addr, "store", cfg.StoreBackend, "provider", cfg.GenerationProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func newStore(cfg config.FileConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	case "postgres":
		return store.NewGormStore(cfg.DatabaseURL)
	default:
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func newObjectStore(cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.MinioEndpoint == "" {
		return storage.NewMemoryStore(""), nil
	}
	return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
}

func newGenerator(cfg config.FileConfig) (ai.ChatGenerator, error) {
	switch cfg.GenerationProvider {
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.GenerationAPIKey, cfg.GenerationBaseURL)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.GenerationBaseURL), cfg.GenerationModel), nil
	case "openai-compat":
		return ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.GenerationProvider)
	}
}

// newLimiter shares counters through Redis when it is configured and falls
// back to a per-process limiter otherwise.
func newLimiter(cfg config.FileConfig, name string, perMinute int) (ratelimit.Limiter, error) {
	if cfg.RedisAddr != "" {
		return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "gauge:stylist:ratelimit:"+name, perMinute, rateWindow)
	}
	return ratelimit.NewMemoryFixedWindowLimiter(perMinute, rateWindow, nil)
}

// newHTTPServer leaves room after the slowest model call to write the reply.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: ai.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
