// Package cache stores research results and composed documents between runs.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Scope partitions cache entries so they can be cleared independently.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeResearch  Scope = "research"
	ScopeDocuments Scope = "documents"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopeAll, ScopeResearch, ScopeDocuments:
		return sc, nil
	}
	return "", eris.Errorf("cache: unknown scope %q", s)
}

// Key addresses one cache entry.
type Key struct {
	Scope Scope
	ID    string
}

func (k Key) String() string {
	return string(k.Scope) + ":" + k.ID
}

func (k Key) validate() error {
	if k.Scope != ScopeResearch && k.Scope != ScopeDocuments {
		return eris.Errorf("cache: invalid key scope %q", k.Scope)
	}
	if k.ID == "" {
		return eris.New("cache: empty key id")
	}
	return nil
}

// ResearchKey identifies the raw results of one search call. Queries that
// differ only in case or surrounding whitespace share an entry.
func ResearchKey(query, depth string, maxResults int) Key {
	normalized := fmt.Sprintf("%s|%s|%d",
		strings.ToLower(strings.TrimSpace(query)),
		strings.ToLower(strings.TrimSpace(depth)),
		maxResults,
	)
	h := sha256.Sum256([]byte(normalized))
	return Key{Scope: ScopeResearch, ID: fmt.Sprintf("%x", h)}
}

// DocumentKey identifies the composed document for an email's content hash.
func DocumentKey(contentHash string) Key {
	return Key{Scope: ScopeDocuments, ID: contentHash}
}

// Stats counts live entries per scope.
type Stats struct {
	Research  int `json:"research"`
	Documents int `json:"documents"`
}

// Total returns the sum across scopes.
func (s Stats) Total() int { return s.Research + s.Documents }

// Manager is a scoped key/value cache. Get never fails: backend errors are
// logged and reported as misses.
type Manager interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Put(ctx context.Context, key Key, value []byte) error
	// Clear removes every entry in scope and returns how many were removed.
	Clear(ctx context.Context, scope Scope) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Get reads key from m, treating a nil Manager as an empty cache.
func Get(ctx context.Context, m Manager, key Key) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	return m.Get(ctx, key)
}

// Put writes key to m. A nil Manager drops the write. Failures are logged
// and swallowed since a cache write never decides a run's outcome.
func Put(ctx context.Context, m Manager, key Key, value []byte) {
	if m == nil {
		return
	}
	if err := m.Put(ctx, key, value); err != nil {
		zap.L().Warn("cache: put failed",
			zap.String("scope", string(key.Scope)),
			zap.Error(err),
		)
	}
}

func logMiss(backend string, key Key, err error) {
	zap.L().Warn("cache: get failed, treating as miss",
		zap.String("backend", backend),
		zap.String("scope", string(key.Scope)),
		zap.Error(err),
	)
}
