package store

import (
	"context"
	"time"

	"github.com/sells-group/interview-prep/internal/model"
)

// RecordFilter specifies criteria for listing interview records.
type RecordFilter struct {
	Status model.RecordStatus `json:"status,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for interview records and the
// durable cache.
type Store interface {
	// Records

	// UpsertRecord inserts rec unless a record with the same content hash
	// exists. It returns the stored record and whether it was created.
	UpsertRecord(ctx context.Context, rec *model.InterviewRecord) (*model.InterviewRecord, bool, error)
	// GetRecordByHash returns nil, nil when no record has the hash.
	GetRecordByHash(ctx context.Context, contentHash string) (*model.InterviewRecord, error)
	UpdateRecordStatus(ctx context.Context, contentHash string, status model.RecordStatus, reason string) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.InterviewRecord, error)
	ListHistory(ctx context.Context, interviewID int64) ([]model.StatusChange, error)

	// Cache entries

	// GetCacheEntry returns nil, nil on a miss or an expired entry.
	GetCacheEntry(ctx context.Context, key string) ([]byte, error)
	// SetCacheEntry stores value under key. A ttl <= 0 never expires.
	SetCacheEntry(ctx context.Context, key, scope string, value []byte, ttl time.Duration) error
	// ClearCacheEntries removes entries in scope, or all entries when scope is "".
	ClearCacheEntries(ctx context.Context, scope string) (int, error)
	// CountCacheEntries counts live entries in scope, or all when scope is "".
	CountCacheEntries(ctx context.Context, scope string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100
