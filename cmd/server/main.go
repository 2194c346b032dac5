package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mindcoach/internal/completion"
	"mindcoach/internal/config"
	"mindcoach/internal/discover"
	"mindcoach/internal/orchestrate"
	"mindcoach/internal/ratelimit"
	"mindcoach/internal/roadmap"
	"mindcoach/internal/server"
	"mindcoach/internal/util"
	"mindcoach/internal/visual"
	"mindcoach/pkg/ai"
	"mindcoach/pkg/search"
	"mindcoach/pkg/storage"
	"mindcoach/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := newStore(cfg)
	if err != nil {
		logger.Error("failed to init store", "err", err)
		os.Exit(1)
	}

	modelClient := ai.NewClient(cfg.GroqAPIKey, cfg.GroqBaseURL)
	searchClient := search.NewClient(cfg.ExaAPIKey, cfg.ExaBaseURL)

	var archive storage.VisualArchive
	if cfg.Minio.Endpoint != "" {
		minioArchive, err := storage.NewMinioArchive(
			cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
			cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			logger.Error("failed to init visual archive", "err", err)
			os.Exit(1)
		}
		archive = minioArchive
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimit.Limit > 0 && cfg.RedisAddr != "" {
		window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RateLimit.Limit, window)
		if err != nil {
			logger.Error("failed to init rate limiter", "err", err)
			os.Exit(1)
		}
	}

	httpServer := server.New(server.Config{
		Store:    st,
		Intents:  orchestrate.New(modelClient),
		Chat:     completion.NewGateway(modelClient),
		Roadmaps: roadmap.NewGenerator(modelClient, searchClient),
		Visuals:  visual.NewGenerator(modelClient, archive),
		Feeds:    discover.NewAggregator(nil),
		Search:   searchClient,
		Limiter:  limiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// long enough for a full model stream
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	case "postgres":
		return store.NewGormStore(cfg.DatabaseURL)
	default:
		return store.NewMemoryStore(), nil
	}
}
