package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

type RedisPublisherConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisPublisher fans standings and live-score events out over redis
// pub/sub channels. Subscribers that join late miss earlier events,
// which is fine because every publish carries a full delta against the
// last table the engine saw.
type RedisPublisher struct {
	client *redis.Client
	logger *logging.Logger
}

var _ usecase.Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(cfg RedisPublisherConfig, logger *logging.Logger) *RedisPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	return &RedisPublisher{
		client: client,
		logger: logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event any) error {
	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for channel %s: %w", channel, err)
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	p.logger.DebugContext(ctx, "event published", "channel", channel, "bytes", len(payload))
	return nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
