package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/config"
	"github.com/kailas-cloud/mmdex/internal/db"
	"github.com/kailas-cloud/mmdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/mmdex/internal/db/redis"
	logpkg "github.com/kailas-cloud/mmdex/internal/logger"
	"github.com/kailas-cloud/mmdex/internal/metrics"
	"github.com/kailas-cloud/mmdex/internal/repository/session"
	"github.com/kailas-cloud/mmdex/internal/transport/backend"
	chiTransport "github.com/kailas-cloud/mmdex/internal/transport/chi"
	conversationuc "github.com/kailas-cloud/mmdex/internal/usecase/conversation"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/mmdex/internal/version"
)

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

	logger.Info("Starting mmdex console API",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("sessions_driver", cfg.Sessions.Driver),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	store, err := newSessionStore(cfg.Sessions)
	if err != nil {
		logger.Fatal("Failed to create session store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Sessions.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Session store not ready", zap.Error(err))
	}
	logger.Info("Session store ready")

	// Register metrics explicitly (no init())
	metrics.RegisterBackendMetrics()
	metrics.RegisterConsoleMetrics()

	client, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		APIKey:    cfg.Backend.APIKey,
		RequestBy: cfg.Backend.RequestBy,
		TaskType:  cfg.Backend.TaskType,
		Timeout:   cfg.Backend.Timeout(),
		Rate:      cfg.Backend.Rate,
		Burst:     cfg.Backend.Burst,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	// Search and chat state share one lock table so a session is never
	// loaded twice concurrently.
	recorder := metrics.Recorder{}
	locks := session.NewLocks()
	searchStates := session.New[retrievaluc.State](store, "search", cfg.Sessions.TTL(), locks, recorder)
	chatStates := session.New[conversationuc.State](store, "chat", cfg.Sessions.TTL(), locks, recorder)

	searchSvc := retrievaluc.New(client, searchStates, recorder, logger, retrievaluc.Config{
		InitialPageSize: cfg.Search.InitialPageSize,
		PageIncrement:   cfg.Search.PageIncrement,
		ModelID:         cfg.Embedding.ModelID,
	})
	chatSvc := conversationuc.New(client, chatStates, recorder, logger, conversationuc.Config{
		TopK:           cfg.Chat.TopK,
		AudioDuration:  cfg.Chat.AudioDuration,
		PendingTimeout: cfg.Chat.PendingTimeout(),
	})
	healthSvc := healthuc.New(store, client)

	server := chiTransport.NewServer(searchSvc, chatSvc, healthSvc, logger).
		WithDefaultModel(cfg.Embedding.ModelID)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(chiTransport.RouterConfig{APIKeys: cfg.Auth.APIKeys}),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// newSessionStore picks the session backend. Redis and Valkey share the rueidis client.
func newSessionStore(cfg config.SessionsConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown sessions driver %q", cfg.Driver)
	}
}
