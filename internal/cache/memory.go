package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	scope   Scope
	value   []byte
	expires time.Time // zero means never
}

// Memory is an in-process Manager.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemory creates a Memory cache. A ttl <= 0 keeps entries until cleared.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key.String()]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, false
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *Memory) Put(_ context.Context, key Key, value []byte) error {
	if err := key.validate(); err != nil {
		return err
	}
	e := memEntry{scope: key.Scope, value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		e.expires = m.nowFunc().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key.String()] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, scope Scope) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if scope == ScopeAll || e.scope == scope {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	for _, e := range m.entries {
		if m.expired(e) {
			continue
		}
		switch e.scope {
		case ScopeResearch:
			s.Research++
		case ScopeDocuments:
			s.Documents++
		}
	}
	return s, nil
}

func (m *Memory) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.nowFunc().Before(e.expires)
}
