package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/zhikangxie107/transcribe/internal/auth"
	"github.com/zhikangxie107/transcribe/internal/config"
	"github.com/zhikangxie107/transcribe/internal/queue"
	"github.com/zhikangxie107/transcribe/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 5,
		},
	)

	identity := auth.NewIdentityClient(auth.IdentityConfig{
		BaseURL: cfg.Auth.IdentityBaseURL,
		APIKey:  cfg.Auth.IdentityAPIKey,
	})

	registry := queue.NewHandlersRegistry()
	displayNameWorker := workers.NewDisplayNameWorker(identity)
	registry.RegisterFunc(queue.TypeDisplayNameSet, displayNameWorker.ProcessTask)

	slog.Info("starting worker", "concurrency", 5)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
