package fanout

import (
	"context"
	"crypto/tls"
	"fmt"

	"leadmarket_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "leadmarket:fanout"

// RedisRelay shares fanout frames between instances over redis pub/sub.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

// NewRedisRelay connects to the configured redis URL.
func NewRedisRelay(cfg config.RedisConfig) (*RedisRelay, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return NewRedisRelayWithClient(redis.NewClient(opt)), nil
}

// NewRedisRelayWithClient wraps an existing client. Tests point it at miniredis.
func NewRedisRelayWithClient(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client, channel: redisChannel}
}

func (r *RedisRelay) Publish(ctx context.Context, data []byte) error {
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *RedisRelay) Run(ctx context.Context, deliver func([]byte)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
