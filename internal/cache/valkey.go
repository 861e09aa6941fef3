package cache

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/config"
)

// Valkey is a Store backed by a Valkey (or Redis) server.
type Valkey struct {
	client *redis.Client
	log    *zap.Logger
}

// NewValkey connects to the configured Valkey server and verifies the
// connection.
func NewValkey(ctx context.Context, cfg config.Valkey, log *zap.Logger) (*Valkey, error) {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)

	log.Info("Connecting to Valkey", zap.String("addr", addr))

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Valkey at %s: %w", addr, err)
	}

	return &Valkey{client: client, log: log}, nil
}

func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := v.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q from Valkey: %w", key, err)
	}
	return val, true, nil
}

func (v *Valkey) Set(ctx context.Context, key, value string) error {
	if err := v.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q in Valkey: %w", key, err)
	}
	return nil
}

func (v *Valkey) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *Valkey) Close() error {
	v.log.Info("Closing Valkey connection")
	return v.client.Close()
}
