package scheduler

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender email.Sender
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(sender, log)
	w.server = server
	return w, nil
}

func newWorker(sender email.Sender, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:    mux,
		sender: sender,
		log:    log,
	}

	mux.HandleFunc(TaskNewLeadEmail, w.handleNewLeadEmail)
	mux.HandleFunc(TaskLeadReservedEmail, w.handleLeadReservedEmail)
	mux.HandleFunc(TaskLeadPurchasedEmail, w.handleLeadPurchasedEmail)

	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNewLeadEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNewLeadEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.sender.SendNewLeadEmail(ctx, payload.ToEmail, payload.LeadTitle, payload.City)
}

func (w *Worker) handleLeadReservedEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadReservedEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.sender.SendLeadReservedEmail(ctx, payload.ToEmail, payload.LeadTitle)
}

func (w *Worker) handleLeadPurchasedEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadPurchasedEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.sender.SendLeadPurchasedEmail(ctx, payload.ToEmail, payload.LeadTitle, payload.AmountCents)
}
