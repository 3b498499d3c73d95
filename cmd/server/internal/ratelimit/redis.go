package ratelimit

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Ensure RedisLimiterStore implements echo's RateLimiterStore interface.
var _ middleware.RateLimiterStore = (*RedisLimiterStore)(nil)

const defaultRedisPort = "6379"

type RedisLimiterStore struct {
	db         *redis.Client
	limiterKey string
	perWindow  int64
	window     time.Duration
	timeout    time.Duration
	failOpen   bool
}

type RedisLimiterConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	PerMinute   int64
	FailOpen    bool
	// Window defaults to one minute; tests shorten it.
	Window time.Duration
}

// Allow counts one request for identifier in the current fixed window.
// Redis errors return the configured fail-open decision along with the error.
func (store *RedisLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()

	key := "subscribeapi-ratelimit-" + store.limiterKey + "-" + identifier

	count, err := store.db.Incr(ctx, key).Result()
	if err != nil {
		return store.failOpen, err
	}

	// first hit in the window owns the expiry
	if count == 1 {
		if err = store.db.Expire(ctx, key, store.window).Err(); err != nil {
			return store.failOpen, err
		}
	}

	return count <= store.perWindow, nil
}

func NewRedisLimitStore(config RedisLimiterConfig) *RedisLimiterStore {
	window := config.Window
	if window == 0 {
		window = time.Minute
	}

	return &RedisLimiterStore{
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		perWindow:  config.PerMinute,
		window:     window,
		timeout:    time.Second,
		failOpen:   config.FailOpen,
	}
}

// Connect opens a client for redisHost (default port 6379) and waits for it to
// answer a PING, backing off between attempts.
func Connect(ctx context.Context, redisHost string, backoff retry.Backoff) (*redis.Client, error) {
	addr := redisHost
	if _, _, err := net.SplitHostPort(redisHost); err != nil {
		addr = net.JoinHostPort(redisHost, defaultRedisPort)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", addr, err)
	}

	return rdb, nil
}
