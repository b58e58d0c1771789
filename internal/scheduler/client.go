package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	emailMaxRetry = 5
	emailTimeout  = 30 * time.Second
)

type Client struct {
	client *asynq.Client
	queue  string
}

// EmailScheduler queues transactional emails for the worker.
type EmailScheduler interface {
	EnqueueNewLeadEmail(ctx context.Context, payload NewLeadEmailPayload) error
	EnqueueLeadReservedEmail(ctx context.Context, payload LeadReservedEmailPayload) error
	EnqueueLeadPurchasedEmail(ctx context.Context, payload LeadPurchasedEmailPayload) error
}

var _ EmailScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueNewLeadEmail(ctx context.Context, payload NewLeadEmailPayload) error {
	task, err := NewNewLeadEmailTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, "new-lead:"+payload.LeadID+":"+payload.ToEmail)
}

func (c *Client) EnqueueLeadReservedEmail(ctx context.Context, payload LeadReservedEmailPayload) error {
	task, err := NewLeadReservedEmailTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, "reserved:"+payload.LeadID)
}

func (c *Client) EnqueueLeadPurchasedEmail(ctx context.Context, payload LeadPurchasedEmailPayload) error {
	task, err := NewLeadPurchasedEmailTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, "receipt:"+payload.TransactionID)
}

// enqueue ignores duplicates: taskID makes a redelivered event a no-op.
func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(emailMaxRetry),
		asynq.Timeout(emailTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
