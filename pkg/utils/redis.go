package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var slotAcquireScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = ttl_ms (int)
-- returns 1 when a slot was taken, 0 when the limit is reached
local current = redis.call('INCR', KEYS[1])
if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
  return 0
end
-- every successful acquire pushes expiry out, so the counter only lapses
-- after ttl with no new holders
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var slotReleaseScript = redis.NewScript(`
-- KEYS[1] = counter key
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// ErrSlotsExhausted is returned by Acquire when every slot under a key is taken.
var ErrSlotsExhausted = errors.New("concurrency slots exhausted")

// ConcurrencyCap bounds how many holders can share one key at a time
// (for example, live outbound calls per campaign).
//
// Acquire is atomic (Lua). Each successful acquire resets the counter's TTL,
// so the counter survives while holders keep arriving and a crashed process
// leaks slots for at most ttl after the last acquire. Set ttl above the
// longest expected hold (call duration).
type ConcurrencyCap struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	ttl    time.Duration
}

// NewConcurrencyCap builds a cap. limit <= 0 disables the cap (Acquire always succeeds).
func NewConcurrencyCap(rdb redis.Scripter, prefix string, limit int, ttl time.Duration) *ConcurrencyCap {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ConcurrencyCap{rdb: rdb, prefix: prefix, limit: limit, ttl: ttl}
}

func (c *ConcurrencyCap) key(name string) string {
	return c.prefix + name
}

// Acquire takes one slot for name, or returns ErrSlotsExhausted.
func (c *ConcurrencyCap) Acquire(ctx context.Context, name string) error {
	if c == nil || c.limit <= 0 {
		return nil
	}
	if c.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if name == "" {
		return fmt.Errorf("slot name is required")
	}
	res, err := slotAcquireScript.Run(ctx, c.rdb, []string{c.key(name)}, c.limit, c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	if res != 1 {
		return ErrSlotsExhausted
	}
	return nil
}

// Release returns a slot previously taken with Acquire.
func (c *ConcurrencyCap) Release(ctx context.Context, name string) error {
	if c == nil || c.limit <= 0 {
		return nil
	}
	if c.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if name == "" {
		return fmt.Errorf("slot name is required")
	}
	if _, err := slotReleaseScript.Run(ctx, c.rdb, []string{c.key(name)}).Result(); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}
