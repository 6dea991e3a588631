package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"lista-precios/internal/catalog"
	"lista-precios/internal/config"
	"lista-precios/internal/notify"
	"lista-precios/internal/rate"
	"lista-precios/internal/server"
	"lista-precios/internal/storage"
	"lista-precios/pkg/dolarapi"
	"lista-precios/pkg/redis"
)

// ENTRY POINT

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		defer cache.Close()
	}

	store, err := storage.NewPostgresStorage(ctx, cfg.Database, cache, logger)
	if err != nil {
		logger.Fatal("Failed to init PostgreSQL storage", zap.Error(err))
	}
	defer store.Close()

	if err := storage.RunMigrations(ctx, store.DB(), logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.AdminIDs, logger)
	if err != nil {
		logger.Fatal("Failed to create Telegram notifier", zap.Error(err))
	}

	dolarClient := dolarapi.NewClient(cfg.Dolar.BaseURL, cfg.Dolar.Timeout, logger)
	watcher := rate.NewWatcher(dolarClient, cache, notifier, cfg.Dolar.FallbackRate, logger)
	watcher.Start(ctx, cfg.Dolar.RefreshInterval)

	srv := server.New(store, watcher, catalog.NewImporter(logger), notifier, logger)
	if err := srv.Run(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server shutdown gracefully")
}
