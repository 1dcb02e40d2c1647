package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chandra-cc/personalized-learning/internal/api"
	"github.com/Chandra-cc/personalized-learning/internal/cache"
	"github.com/Chandra-cc/personalized-learning/internal/catalog"
	"github.com/Chandra-cc/personalized-learning/internal/cleanup"
	"github.com/Chandra-cc/personalized-learning/internal/config"
	"github.com/Chandra-cc/personalized-learning/internal/enhancer"
	"github.com/Chandra-cc/personalized-learning/internal/feed"
	"github.com/Chandra-cc/personalized-learning/internal/learning"
	"github.com/Chandra-cc/personalized-learning/internal/services"
	"github.com/Chandra-cc/personalized-learning/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting learning-path",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"enhancer", cfg.Enhancer.Enabled,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	reg, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "goals", reg.Len())

	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.RunMigrations(initCtx, repo.Pool(), storage.MigrationsSource(cfg.Database.MigrationsDir)); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	deps := services.NewRegistry()

	pgChecker, err := services.NewPostgresChecker(cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to create postgres checker", "error", err)
		os.Exit(1)
	}
	defer pgChecker.Close()
	deps.Register(pgChecker)

	opts := []learning.Option{}

	if rdb := connectRedis(initCtx, cfg.Redis); rdb != nil {
		defer rdb.Close()
		deps.Register(services.NewRedisChecker(rdb))
		opts = append(opts, learning.WithCache(cache.NewRedisPathCache(rdb, cfg.Redis.PathTTL)))
	}

	if cfg.Enhancer.Enabled {
		completer := enhancer.NewOpenAICompleter(cfg.Enhancer.APIKey, cfg.Enhancer.BaseURL, cfg.Enhancer.Model)
		opts = append(opts, learning.WithEnhancer(enhancer.New(completer, enhancer.Options{
			Timeout:          cfg.Enhancer.Timeout,
			MaxSteps:         cfg.Enhancer.MaxSteps,
			FailureThreshold: cfg.Enhancer.FailureThreshold,
			OpenTimeout:      cfg.Enhancer.OpenTimeout,
		})))
		slog.Info("path enhancer enabled", "model", cfg.Enhancer.Model)
	}

	hub := feed.NewHub()
	opts = append(opts, learning.WithHub(hub))

	svc := learning.NewService(repo, reg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup.NewCleaner(repo, cfg.Cleanup.Interval).Start(ctx)

	server := api.NewServer(cfg.Server, cfg.RateLimit, svc, repo, deps, hub)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// WriteTimeout is left unset; it would cut off progress streams.
		// Regular routes are bounded by the router's request timeout.
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("learning-path stopped")
}

// connectRedis returns nil when the cache is disabled or unreachable; the
// service then runs without a path cache
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Address == "" {
		slog.Info("redis address not set, path cache disabled")
		return nil
	}
	client, err := services.NewRedisClient(ctx, services.RedisOptions{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, path cache disabled", "address", cfg.Address, "error", err)
		return nil
	}
	return client
}
