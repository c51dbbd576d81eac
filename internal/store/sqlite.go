package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/interview-prep/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: batch workers share the handle and the pragmas below
	// are per-connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS interviews (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id       TEXT NOT NULL DEFAULT '',
	candidate_name TEXT NOT NULL DEFAULT '',
	company_name   TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT '',
	interviewer    TEXT NOT NULL DEFAULT '',
	interview_date TEXT NOT NULL DEFAULT '',
	interview_time TEXT NOT NULL DEFAULT '',
	duration       TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	format         TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'preparing',
	raw_entities   TEXT,
	content_hash   TEXT NOT NULL UNIQUE,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS interview_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	interview_id INTEGER NOT NULL REFERENCES interviews(id),
	field_name   TEXT NOT NULL,
	old_value    TEXT NOT NULL DEFAULT '',
	new_value    TEXT NOT NULL DEFAULT '',
	changed_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	scope      TEXT NOT NULL,
	value      BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_interviews_status ON interviews(status);
CREATE INDEX IF NOT EXISTS idx_interviews_created_at ON interviews(created_at);
CREATE INDEX IF NOT EXISTS idx_interview_history_interview_id ON interview_history(interview_id);
CREATE INDEX IF NOT EXISTS idx_cache_entries_scope ON cache_entries(scope);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, email_id, candidate_name, company_name, role, interviewer,
	interview_date, interview_time, duration, location, format, status,
	raw_entities, content_hash, failure_reason, created_at, updated_at`

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec *model.InterviewRecord) (*model.InterviewRecord, bool, error) {
	now := time.Now().UTC()
	status := rec.Status
	if status == "" {
		status = model.StatusPreparing
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO interviews (email_id, candidate_name, company_name, role, interviewer,
			interview_date, interview_time, duration, location, format, status,
			raw_entities, content_hash, failure_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		rec.EmailID, rec.CandidateName, rec.CompanyName, rec.Role, rec.Interviewer,
		rec.InterviewDate, rec.InterviewTime, rec.Duration, rec.Location, rec.Format, string(status),
		nullString(rec.RawEntities), rec.ContentHash, rec.FailureReason, now, now,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert interview %s", rec.ContentHash)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}
	created := n == 1

	if created {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, eris.Wrap(err, "sqlite: last insert id")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interview_history (interview_id, field_name, old_value, new_value, changed_at)
			 VALUES (?, 'status', '', ?, ?)`,
			id, string(status), now,
		); err != nil {
			return nil, false, eris.Wrap(err, "sqlite: insert history")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit upsert")
	}

	stored, err := s.GetRecordByHash(ctx, rec.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, eris.Errorf("sqlite: interview vanished after upsert: %s", rec.ContentHash)
	}
	return stored, created, nil
}

func (s *SQLiteStore) GetRecordByHash(ctx context.Context, contentHash string) (*model.InterviewRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM interviews WHERE content_hash = ?`,
		contentHash,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get interview %s", contentHash)
	}
	return rec, nil
}

func (s *SQLiteStore) UpdateRecordStatus(ctx context.Context, contentHash string, status model.RecordStatus, reason string) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin status update")
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	var prev string
	err = tx.QueryRowContext(ctx,
		`SELECT id, status FROM interviews WHERE content_hash = ?`, contentHash,
	).Scan(&id, &prev)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Errorf("interview not found: %s", contentHash)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read status %s", contentHash)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE interviews SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", contentHash)
	}
	if err := checkRowsAffected(res, "interview", contentHash); err != nil {
		return err
	}

	if prev != string(status) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interview_history (interview_id, field_name, old_value, new_value, changed_at)
			 VALUES (?, 'status', ?, ?, ?)`,
			id, prev, string(status), now,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert history")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit status update")
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.InterviewRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM interviews WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list interviews")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.InterviewRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interview")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list interviews iterate")
}

func (s *SQLiteStore) ListHistory(ctx context.Context, interviewID int64) ([]model.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interview_id, field_name, old_value, new_value, changed_at
		 FROM interview_history WHERE interview_id = ? ORDER BY id`,
		interviewID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		if err := rows.Scan(&c.InterviewID, &c.FieldName, &c.OldValue, &c.NewValue, &c.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, time.Now().UTC(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}
	return value, nil
}

func (s *SQLiteStore) SetCacheEntry(ctx context.Context, key, scope string, value []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	var expiresAt any
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, scope, value, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET scope = excluded.scope, value = excluded.value,
			created_at = excluded.created_at, expires_at = excluded.expires_at`,
		key, scope, value, now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set cache entry")
}

func (s *SQLiteStore) ClearCacheEntries(ctx context.Context, scope string) (int, error) {
	query := `DELETE FROM cache_entries`
	var args []any
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear cache entries")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CountCacheEntries(ctx context.Context, scope string) (int, error) {
	query := `SELECT COUNT(*) FROM cache_entries WHERE (expires_at IS NULL OR expires_at > ?)`
	args := []any{time.Now().UTC()}
	if scope != "" {
		query += ` AND scope = ?`
		args = append(args, scope)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count cache entries")
	}
	return n, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.InterviewRecord, error) {
	var r model.InterviewRecord
	var raw sql.NullString
	err := row.Scan(&r.ID, &r.EmailID, &r.CandidateName, &r.CompanyName, &r.Role, &r.Interviewer,
		&r.InterviewDate, &r.InterviewTime, &r.Duration, &r.Location, &r.Format, &r.Status,
		&raw, &r.ContentHash, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if raw.Valid && raw.String != "" {
		r.RawEntities = []byte(raw.String)
	}
	return &r, nil
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
