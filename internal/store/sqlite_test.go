package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleRecord(hash string) *model.InterviewRecord {
	return &model.InterviewRecord{
		EmailID:       "msg-001",
		CandidateName: "Jamie Park",
		CompanyName:   "Launchpad AI",
		Role:          "Backend Engineer",
		InterviewDate: "March 12",
		InterviewTime: "2:00 PM",
		Format:        "Zoom",
		Status:        model.StatusPreparing,
		RawEntities:   json.RawMessage(`[{"label":"CANDIDATE","text":"Jamie Park","score":0.9}]`),
		ContentHash:   hash,
	}
}

// --- Records ---

func TestSQLite_UpsertRecord_CreatesThenNoOps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, created, err := st.UpsertRecord(ctx, sampleRecord("hash-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "Jamie Park", rec.CandidateName)
	assert.Equal(t, model.StatusPreparing, rec.Status)
	assert.JSONEq(t, `[{"label":"CANDIDATE","text":"Jamie Park","score":0.9}]`, string(rec.RawEntities))

	again := sampleRecord("hash-1")
	again.CandidateName = "Somebody Else"
	rec2, created, err := st.UpsertRecord(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, rec2.ID)
	assert.Equal(t, "Jamie Park", rec2.CandidateName, "existing record is not overwritten")

	all, err := st.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_UpsertRecord_DefaultsStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	rec := sampleRecord("hash-default")
	rec.Status = ""
	rec.RawEntities = nil

	got, _, err := st.UpsertRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, got.Status)
	assert.Nil(t, got.RawEntities)
}

func TestSQLite_UpsertRecord_Concurrent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := st.UpsertRecord(ctx, sampleRecord("same-hash"))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	all, err := st.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_GetRecordByHash_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.GetRecordByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_UpdateRecordStatus_WritesHistory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, _, err := st.UpsertRecord(ctx, sampleRecord("hash-h"))
	require.NoError(t, err)

	require.NoError(t, st.UpdateRecordStatus(ctx, "hash-h", model.StatusResearching, ""))
	require.NoError(t, st.UpdateRecordStatus(ctx, "hash-h", model.StatusResearching, ""))
	require.NoError(t, st.UpdateRecordStatus(ctx, "hash-h", model.StatusReady, ""))

	got, err := st.GetRecordByHash(ctx, "hash-h")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, got.Status)

	hist, err := st.ListHistory(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3, "unchanged status does not add history")
	assert.Equal(t, "", hist[0].OldValue)
	assert.Equal(t, "preparing", hist[0].NewValue)
	assert.Equal(t, "preparing", hist[1].OldValue)
	assert.Equal(t, "researching", hist[1].NewValue)
	assert.Equal(t, "researching", hist[2].OldValue)
	assert.Equal(t, "ready", hist[2].NewValue)
	assert.Equal(t, "status", hist[2].FieldName)
}

func TestSQLite_UpdateRecordStatus_FailureReason(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, _, err := st.UpsertRecord(ctx, sampleRecord("hash-f"))
	require.NoError(t, err)
	require.NoError(t, st.UpdateRecordStatus(ctx, "hash-f", model.StatusFailed, "context canceled"))

	got, err := st.GetRecordByHash(ctx, "hash-f")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "context canceled", got.FailureReason)
}

func TestSQLite_UpdateRecordStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRecordStatus(context.Background(), "missing", model.StatusReady, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interview not found")
}

func TestSQLite_ListRecords_FilterAndPaging(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, h := range []string{"a", "b", "c"} {
		_, _, err := st.UpsertRecord(ctx, sampleRecord(h))
		require.NoError(t, err)
	}
	require.NoError(t, st.UpdateRecordStatus(ctx, "b", model.StatusReady, ""))

	ready, err := st.ListRecords(ctx, RecordFilter{Status: model.StatusReady})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].ContentHash)

	page, err := st.ListRecords(ctx, RecordFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.ListRecords(ctx, RecordFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

// --- Cache entries ---

func TestSQLite_CacheEntry_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, "research:k1", "research", []byte(`[{"url":"u"}]`), time.Hour))

	data, err := st.GetCacheEntry(ctx, "research:k1")
	require.NoError(t, err)
	assert.Equal(t, `[{"url":"u"}]`, string(data))
}

func TestSQLite_CacheEntry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	data, err := st.GetCacheEntry(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_CacheEntry_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, "old", "research", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	data, err := st.GetCacheEntry(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, data)

	n, err := st.CountCacheEntries(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_CacheEntry_NoTTLNeverExpires(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, "doc", "documents", []byte("d"), 0))
	data, err := st.GetCacheEntry(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "d", string(data))
}

func TestSQLite_CacheEntry_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, "k", "research", []byte("original"), time.Hour))
	require.NoError(t, st.SetCacheEntry(ctx, "k", "research", []byte("updated"), time.Hour))

	data, err := st.GetCacheEntry(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))
}

func TestSQLite_ClearCacheEntries_Scoped(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCacheEntry(ctx, "r1", "research", []byte("1"), time.Hour))
	require.NoError(t, st.SetCacheEntry(ctx, "r2", "research", []byte("2"), time.Hour))
	require.NoError(t, st.SetCacheEntry(ctx, "d1", "documents", []byte("3"), time.Hour))

	n, err := st.ClearCacheEntries(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := st.CountCacheEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	n, err = st.ClearCacheEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := st.GetCacheEntry(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_StoreInterface(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
