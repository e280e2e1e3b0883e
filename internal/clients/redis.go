package clients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"storefront/internal/config"
)

const redisProbeName = "store"

// redisKV is the subset of the go-redis API used by SettingsClient. It is
// implemented by *redis.Client and by test doubles.
type redisKV interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// NewRedis builds a go-redis client from the store config. No connection is
// opened until the first command.
func NewRedis(cfg config.StoreConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// SettingsClient reads and writes the persisted user settings in Redis. It
// answers the notification availability question for the sequencer and
// exposes a Probe for health checks.
type SettingsClient struct {
	kv       redisKV
	cb       *gobreaker.CircuitBreaker
	key      string
	fallback bool
}

// NewSettingsClient creates a SettingsClient. fallback is the availability
// answer when the user never stored a preference.
func NewSettingsClient(kv redisKV, keyPrefix string, fallback bool, cb *gobreaker.CircuitBreaker) *SettingsClient {
	return &SettingsClient{
		kv:       kv,
		cb:       cb,
		key:      keyPrefix + ":settings:notification",
		fallback: fallback,
	}
}

// NotificationsAvailable returns the stored notification preference, or the
// fallback when none is stored. Store errors are returned so the caller can
// apply its own policy.
func (c *SettingsClient) NotificationsAvailable(ctx context.Context) (bool, error) {
	out, err := c.cb.Execute(func() (any, error) {
		val, err := c.kv.Get(ctx, c.key).Result()
		if errors.Is(err, redis.Nil) {
			return c.fallback, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading notification setting: %w", err)
		}
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("parsing notification setting %q: %w", val, err)
		}
		return enabled, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return false, fmt.Errorf("circuit open: %w", err)
		}
		return false, err
	}
	return out.(bool), nil
}

// SetNotificationsEnabled stores the user's notification preference. It takes
// effect the next time the shell starts.
func (c *SettingsClient) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	_, err := c.cb.Execute(func() (any, error) {
		if err := c.kv.Set(ctx, c.key, strconv.FormatBool(enabled), 0).Err(); err != nil {
			return nil, fmt.Errorf("writing notification setting: %w", err)
		}
		return nil, nil
	})
	return err
}

// Probe sends a PING command to Redis and validates the PONG response. After 3
// consecutive failures the breaker opens and calls return "circuit open".
func (c *SettingsClient) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		val, err := c.kv.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	return probeResult(redisProbeName, start, err)
}
