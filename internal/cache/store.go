package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// EntryStore is the slice of the record store that persists cache entries.
type EntryStore interface {
	GetCacheEntry(ctx context.Context, key string) ([]byte, error)
	SetCacheEntry(ctx context.Context, key, scope string, value []byte, ttl time.Duration) error
	ClearCacheEntries(ctx context.Context, scope string) (int, error)
	CountCacheEntries(ctx context.Context, scope string) (int, error)
}

// Store is a Manager backed by the record store's cache_entries table, so
// cached research survives process restarts without extra infrastructure.
type Store struct {
	entries EntryStore
	ttl     time.Duration
}

// NewStore wraps an EntryStore. A ttl <= 0 keeps entries until cleared.
func NewStore(entries EntryStore, ttl time.Duration) *Store {
	return &Store{entries: entries, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key Key) ([]byte, bool) {
	v, err := s.entries.GetCacheEntry(ctx, key.String())
	if err != nil {
		logMiss("store", key, err)
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

func (s *Store) Put(ctx context.Context, key Key, value []byte) error {
	if err := key.validate(); err != nil {
		return err
	}
	return eris.Wrap(
		s.entries.SetCacheEntry(ctx, key.String(), string(key.Scope), value, s.ttl),
		"cache: store put",
	)
}

func (s *Store) Clear(ctx context.Context, scope Scope) (int, error) {
	filter := string(scope)
	if scope == ScopeAll {
		filter = ""
	}
	n, err := s.entries.ClearCacheEntries(ctx, filter)
	return n, eris.Wrapf(err, "cache: store clear %s", scope)
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	r, err := s.entries.CountCacheEntries(ctx, string(ScopeResearch))
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: count research")
	}
	d, err := s.entries.CountCacheEntries(ctx, string(ScopeDocuments))
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: count documents")
	}
	return Stats{Research: r, Documents: d}, nil
}
