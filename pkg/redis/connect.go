package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/ztruyen/ztc-auth/pkg/retry"
)

// Connect parses cfg.ConnectionURL and returns a client once the server
// answers PING.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	client := redis.NewClient(opts)
	policy := retry.Policy{
		Timeout:  cfg.ConnectTimeout,
		Attempts: cfg.RetryAttempts,
		Wait:     cfg.RetryInterval,
	}
	if _, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return client.Ping(ctx).Result()
	}); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}
