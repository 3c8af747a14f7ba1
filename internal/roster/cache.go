package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DoyleJ11/poke-battle-backend/internal/engine"
)

// MoveCache stores resolved move details between battles.
type MoveCache interface {
	Get(ctx context.Context, key string) (engine.MoveDetail, bool, error)
	Set(ctx context.Context, key string, d engine.MoveDetail) error
}

// Cached wraps a Provider so concurrent lookups of the same move collapse
// into one upstream request and successful results are cached.
type Cached struct {
	Provider
	cache   MoveCache
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
}

const defaultSharedLookupTimeout = 10 * time.Second

// WithMoveCache decorates p. cache may be nil, in which case only
// concurrent duplicate lookups are collapsed.
func WithMoveCache(p Provider, cache MoveCache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{Provider: p, cache: cache, timeout: defaultSharedLookupTimeout, logger: logger}
}

// FetchMoveDetail serves key from the cache or a shared upstream call. The
// shared call does not inherit any one caller's cancellation; each caller
// stops waiting when its own ctx is done.
func (c *Cached) FetchMoveDetail(ctx context.Context, key string) (engine.MoveDetail, error) {
	if c.cache != nil {
		d, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("move cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			return d, nil
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(shared, c.timeout)
		defer cancel()

		d, err := c.Provider.FetchMoveDetail(fctx, key)
		if err != nil {
			return engine.MoveDetail{}, err
		}
		if c.cache != nil {
			if err := c.cache.Set(fctx, key, d); err != nil {
				c.logger.Warn("move cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return d, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return engine.MoveDetail{}, res.Err
		}
		return res.Val.(engine.MoveDetail), nil
	case <-ctx.Done():
		return engine.MoveDetail{}, ctx.Err()
	}
}

const redisKeyPrefix = "pokebattle:move:"

type RedisMoveCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisMoveCache(rdb *redis.Client, ttl time.Duration) *RedisMoveCache {
	return &RedisMoveCache{rdb: rdb, ttl: ttl}
}

// OpenRedis connects and pings once so a bad address fails at startup.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisMoveCache) Get(ctx context.Context, key string) (engine.MoveDetail, bool, error) {
	b, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.MoveDetail{}, false, nil
	}
	if err != nil {
		return engine.MoveDetail{}, false, err
	}
	var d engine.MoveDetail
	if err := json.Unmarshal(b, &d); err != nil {
		return engine.MoveDetail{}, false, fmt.Errorf("decode cached move %s: %w", key, err)
	}
	return d, true, nil
}

func (r *RedisMoveCache) Set(ctx context.Context, key string, d engine.MoveDetail) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisKeyPrefix+key, b, r.ttl).Err()
}
