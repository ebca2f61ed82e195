package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warc-ops/internal/config"
	"warc-ops/internal/model"
)

// keyValue is the subset of the Redis client the sink uses.
type keyValue interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// RedisSink stores the latest record per job under <prefix><job> and announces
// it on a pub/sub channel.
type RedisSink struct {
	kv        keyValue
	keyPrefix string
	channel   string
	ttl       time.Duration
}

type redisClient struct {
	client *redis.Client
}

func (c *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}

func NewRedisSink(ctx context.Context, cfg config.RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newRedisSink(&redisClient{client: client}, cfg), nil
}

func newRedisSink(kv keyValue, cfg config.RedisConfig) *RedisSink {
	return &RedisSink{kv: kv, keyPrefix: cfg.KeyPrefix, channel: cfg.Channel, ttl: cfg.TTL}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Key(jobName string) string {
	return s.keyPrefix + jobName
}

func (s *RedisSink) Publish(ctx context.Context, rec model.RunRecord) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.Key(rec.JobName), payload, s.ttl); err != nil {
		return fmt.Errorf("set %s: %w", s.Key(rec.JobName), err)
	}
	if s.channel == "" {
		return nil
	}
	if err := s.kv.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.kv.Close()
}

var _ Sink = (*RedisSink)(nil)
