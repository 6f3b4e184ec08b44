// Package lock provides Redis-backed advisory locks: the
// scheduler-singleton guard and the per-tenant channel-token refresh guard.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahmadsadek12/convoyd/internal/config"
)

// ErrNotHeld means the lock was not (or no longer) held by this token.
var ErrNotHeld = errors.New("lock: not held")

// Client wraps a Redis connection for advisory locking.
type Client struct {
	rdb *redis.Client
}

// New builds a Client from cfg.
func New(cfg config.RedisConfig) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{rdb: rdb}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Handle is a held advisory lock, released by calling Release.
type Handle struct {
	client *Client
	key    string
	token  string
}

// Acquire attempts a non-blocking SETNX-style lock acquisition with ttl. It
// returns ok=false (no error) if another holder already has the lock.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Handle{client: c, key: key, token: token}, true, nil
}

// Release drops the lock iff it is still held by this handle's token, using
// a compare-and-delete Lua script so an expired-and-reacquired lock is
// never released by a stale holder.
func (h *Handle) Release(ctx context.Context) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`
	res, err := h.client.rdb.Eval(ctx, script, []string{lockKey(h.key)}, h.token).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", h.key, err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend refreshes the lock's TTL iff still held by this handle's token.
func (h *Handle) Extend(ctx context.Context, ttl time.Duration) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`
	res, err := h.client.rdb.Eval(ctx, script, []string{lockKey(h.key)}, h.token, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", h.key, err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrNotHeld
	}
	return nil
}

func lockKey(key string) string {
	return "convoyd:lock:" + key
}

// SchedulerSingletonKey names the advisory lock for a named scheduler job,
// keyed per job so the completer and archive worker don't contend with each
// other across multiple running processes.
func SchedulerSingletonKey(jobName string) string {
	return "scheduler:" + jobName
}

// ChannelTokenRefreshKey names the per-tenant lock guarding a channel
// integration's credential refresh.
func ChannelTokenRefreshKey(businessID, platform string) string {
	return "channel-token-refresh:" + businessID + ":" + platform
}
