package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var recordCols = []string{
	"id", "email_id", "candidate_name", "company_name", "role", "interviewer",
	"interview_date", "interview_time", "duration", "location", "format", "status",
	"raw_entities", "content_hash", "failure_reason", "created_at", "updated_at",
}

func recordRow(mock pgxmock.PgxPoolIface, id int64, hash, status string) *pgxmock.Rows {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return mock.NewRows(recordCols).AddRow(
		id, "msg-001", "Jamie Park", "Launchpad AI", "Backend Engineer", "",
		"March 12", "2:00 PM", "", "", "Zoom", status,
		[]byte(`[]`), hash, "", now, now,
	)
}

// upsertArgs are the 15 bind values UpsertRecord sends for sampleRecord(hash).
func upsertArgs(hash string) []any {
	return []any{
		"msg-001", "Jamie Park", "Launchpad AI", "Backend Engineer", "",
		"March 12", "2:00 PM", "", "", "Zoom", "preparing",
		pgxmock.AnyArg(), hash, "", pgxmock.AnyArg(),
	}
}

func TestPostgresStore_UpsertRecord_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)WITH ins AS \(\s*INSERT INTO interviews .*ON CONFLICT \(content_hash\) DO NOTHING`).
		WithArgs(upsertArgs("hash-1")...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`(?s)SELECT .* FROM interviews WHERE content_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(recordRow(mock, 7, "hash-1", "preparing"))

	rec, created, err := s.UpsertRecord(context.Background(), sampleRecord("hash-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, model.StatusPreparing, rec.Status)
	assert.Equal(t, "Launchpad AI", rec.CompanyName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecord_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(content_hash\) DO NOTHING`).
		WithArgs(upsertArgs("hash-1")...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`FROM interviews WHERE content_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(recordRow(mock, 7, "hash-1", "ready"))

	rec, created, err := s.UpsertRecord(context.Background(), sampleRecord("hash-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, model.StatusReady, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecord_UniqueViolationIsNoOp(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO interviews`).
		WithArgs(upsertArgs("hash-1")...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`FROM interviews WHERE content_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(recordRow(mock, 7, "hash-1", "preparing"))

	_, created, err := s.UpsertRecord(context.Background(), sampleRecord("hash-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecord_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO interviews`).
		WithArgs(upsertArgs("hash-1")...).
		WillReturnError(errors.New("connection refused"))

	_, _, err := s.UpsertRecord(context.Background(), sampleRecord("hash-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert interview")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecordByHash_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM interviews WHERE content_hash = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetRecordByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRecordStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)WITH prev AS .*UPDATE interviews SET status = \$2.*INSERT INTO interview_history`).
		WithArgs("hash-1", "ready", "", pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))

	err := s.UpdateRecordStatus(context.Background(), "hash-1", model.StatusReady, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRecordStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WITH prev AS`).
		WithArgs("missing", "failed", "boom", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	err := s.UpdateRecordStatus(context.Background(), "missing", model.StatusFailed, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interview not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_WithFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM interviews WHERE true AND status = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("ready", 5, 10).
		WillReturnRows(recordRow(mock, 3, "h3", "ready"))

	recs, err := s.ListRecords(context.Background(), RecordFilter{Status: model.StatusReady, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "h3", recs[0].ContentHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM interview_history WHERE interview_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(mock.NewRows([]string{"interview_id", "field_name", "old_value", "new_value", "changed_at"}).
			AddRow(int64(7), "status", "", "preparing", now).
			AddRow(int64(7), "status", "preparing", "researching", now))

	hist, err := s.ListHistory(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "researching", hist[1].NewValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCacheEntry_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM cache_entries`).
		WithArgs("k").
		WillReturnError(pgx.ErrNoRows)

	data, err := s.GetCacheEntry(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCacheEntry_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM cache_entries`).
		WithArgs("k").
		WillReturnRows(mock.NewRows([]string{"value"}).AddRow([]byte("payload")))

	data, err := s.GetCacheEntry(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCacheEntry_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)INSERT INTO cache_entries .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("k", "research", []byte("v"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCacheEntry(context.Background(), "k", "research", []byte("v"), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearCacheEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM cache_entries WHERE scope = \$1`).
		WithArgs("documents").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM cache_entries$`).
		WillReturnResult(pgxmock.NewResult("DELETE", 9))

	n, err := s.ClearCacheEntries(context.Background(), "documents")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.ClearCacheEntries(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountCacheEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cache_entries .* AND scope = \$1`).
		WithArgs("research").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountCacheEntries(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateAndClose(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS interviews`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))

	called := false
	s.closeFn = func() { called = true }
	require.NoError(t, s.Close())
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
