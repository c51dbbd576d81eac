package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const scanBatch = 200

// Redis is a Manager backed by a Redis server. Keys are laid out as
// <prefix><scope>:<id> so a scope clear is a prefix scan.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client. A ttl <= 0 stores keys without expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(k Key) string {
	return r.prefix + k.String()
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, bool) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logMiss("redis", key, err)
		return nil, false
	}
	return v, true
}

func (r *Redis) Put(ctx context.Context, key Key, value []byte) error {
	if err := key.validate(); err != nil {
		return err
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrap(r.client.Set(ctx, r.key(key), value, ttl).Err(), "cache: redis put")
}

func (r *Redis) Clear(ctx context.Context, scope Scope) (int, error) {
	pattern := r.prefix + string(scope) + ":*"
	if scope == ScopeAll {
		pattern = r.prefix + "*"
	}

	removed := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, eris.Wrapf(err, "cache: redis scan %s", pattern)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, eris.Wrap(err, "cache: redis del")
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	research, err := r.count(ctx, r.prefix+string(ScopeResearch)+":*")
	if err != nil {
		return Stats{}, err
	}
	docs, err := r.count(ctx, r.prefix+string(ScopeDocuments)+":*")
	if err != nil {
		return Stats{}, err
	}
	return Stats{Research: research, Documents: docs}, nil
}

func (r *Redis) count(ctx context.Context, pattern string) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, eris.Wrapf(iter.Err(), "cache: redis count %s", pattern)
}
