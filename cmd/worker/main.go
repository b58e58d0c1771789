package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/scheduler"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting email worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsSMTPEnabled() {
		log.Warn("SMTP not configured; email tasks will be acknowledged without sending")
	}
	sender := email.NewSender(cfg)

	worker, err := scheduler.NewWorker(cfg, sender, log)
	if err != nil {
		log.Error("failed to initialize email worker", "error", err)
		panic("failed to initialize email worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("email worker stopped")
}
