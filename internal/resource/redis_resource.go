package resource

import (
	"context"

	"github.com/redis/go-redis/v9"

	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
	"deepfake-service/pkg/redisclient"
)

// RedisResource manages the lifecycle of the shared Redis client.
type RedisResource struct {
	client *redisclient.Client
}

// OpenRedis establishes the Redis connection.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisResource, error) {
	client, err := redisclient.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("Redis resource initialized addr=%s db=%d", cfg.GetRedisAddr(), cfg.DB)
	return &RedisResource{client: client}, nil
}

func (r *RedisResource) Name() string { return "redis" }

// Close tidies up the underlying Redis client.
func (r *RedisResource) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Client exposes the raw go-redis client.
func (r *RedisResource) Client() *redis.Client {
	if r.client == nil {
		return nil
	}
	return r.client.Raw()
}
