package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "interviews.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCache builds the configured cache backend. The returned close func is
// never nil. Driver "none" yields a nil Manager, which disables caching.
func initCache(ctx context.Context, st store.Store) (cache.Manager, func(), error) {
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	noop := func() {}

	switch cfg.Cache.Driver {
	case "store", "":
		return cache.NewStore(st, ttl), noop, nil
	case "memory":
		return cache.NewMemory(ttl), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, eris.Wrapf(err, "ping redis %s", cfg.Cache.RedisAddr)
		}
		return cache.NewRedis(client, cfg.Cache.RedisPrefix, ttl), func() { _ = client.Close() }, nil
	case "none":
		return nil, noop, nil
	default:
		return nil, noop, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}
