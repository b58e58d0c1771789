package scheduler

import (
	"context"
	"errors"
	"testing"

	"leadmarket_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "notifications" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

type recordingSender struct {
	newLead   []string
	reserved  []string
	purchased []int64
	err       error
}

func (s *recordingSender) SendNewLeadEmail(_ context.Context, to, _, _ string) error {
	s.newLead = append(s.newLead, to)
	return s.err
}

func (s *recordingSender) SendLeadReservedEmail(_ context.Context, to, _ string) error {
	s.reserved = append(s.reserved, to)
	return s.err
}

func (s *recordingSender) SendLeadPurchasedEmail(_ context.Context, _, _ string, amountCents int64) error {
	s.purchased = append(s.purchased, amountCents)
	return s.err
}

func TestClientEnqueuesOnConfiguredQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	receipt := LeadPurchasedEmailPayload{ToEmail: "artisan@example.com", LeadID: "lead-1", LeadTitle: "Roof", TransactionID: "tx-1", AmountCents: 4500}
	if err := client.EnqueueLeadPurchasedEmail(ctx, receipt); err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	// The same transaction never queues a second receipt.
	if err := client.EnqueueLeadPurchasedEmail(ctx, receipt); err != nil {
		t.Fatalf("duplicate enqueue returned error: %v", err)
	}
	if err := client.EnqueueNewLeadEmail(ctx, NewLeadEmailPayload{ToEmail: "a@example.com", LeadID: "lead-2", LeadTitle: "Sink"}); err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}

	opt, err := redisClientOpt(cfg.redisURL, false)
	if err != nil {
		t.Fatalf("redisClientOpt returned error: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("notifications")
	if err != nil {
		t.Fatalf("ListPendingTasks returned error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", len(tasks))
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestWorkerDispatchesToSender(t *testing.T) {
	sender := &recordingSender{}
	w := newWorker(sender, logger.Nop())
	ctx := context.Background()

	newLead, _ := NewNewLeadEmailTask(NewLeadEmailPayload{ToEmail: "a@example.com", LeadTitle: "Sink"})
	reserved, _ := NewLeadReservedEmailTask(LeadReservedEmailPayload{ToEmail: "b@example.com", LeadTitle: "Roof"})
	purchased, _ := NewLeadPurchasedEmailTask(LeadPurchasedEmailPayload{ToEmail: "c@example.com", AmountCents: 1200})

	for _, task := range []*asynq.Task{newLead, reserved, purchased} {
		if err := w.mux.ProcessTask(ctx, task); err != nil {
			t.Fatalf("ProcessTask(%s) returned error: %v", task.Type(), err)
		}
	}

	if len(sender.newLead) != 1 || sender.newLead[0] != "a@example.com" {
		t.Fatalf("unexpected new lead emails %v", sender.newLead)
	}
	if len(sender.reserved) != 1 || sender.reserved[0] != "b@example.com" {
		t.Fatalf("unexpected reserved emails %v", sender.reserved)
	}
	if len(sender.purchased) != 1 || sender.purchased[0] != 1200 {
		t.Fatalf("unexpected receipts %v", sender.purchased)
	}
}

func TestWorkerSkipsRetryOnMalformedPayload(t *testing.T) {
	w := newWorker(&recordingSender{}, logger.Nop())
	err := w.mux.ProcessTask(context.Background(), asynq.NewTask(TaskLeadReservedEmail, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestWorkerReturnsSenderErrorForRetry(t *testing.T) {
	w := newWorker(&recordingSender{err: errors.New("smtp down")}, logger.Nop())
	task, _ := NewLeadReservedEmailTask(LeadReservedEmailPayload{ToEmail: "b@example.com"})
	if err := w.mux.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected sender error to propagate")
	}
}
