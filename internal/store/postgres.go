package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/db"
	"github.com/sells-group/interview-prep/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS interviews (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
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
	raw_entities   JSONB,
	content_hash   TEXT NOT NULL UNIQUE,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interview_history (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	interview_id BIGINT NOT NULL REFERENCES interviews(id),
	field_name   TEXT NOT NULL,
	old_value    TEXT NOT NULL DEFAULT '',
	new_value    TEXT NOT NULL DEFAULT '',
	changed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	scope      TEXT NOT NULL,
	value      BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_interviews_status ON interviews(status);
CREATE INDEX IF NOT EXISTS idx_interviews_created_at ON interviews(created_at);
CREATE INDEX IF NOT EXISTS idx_interview_history_interview_id ON interview_history(interview_id);
CREATE INDEX IF NOT EXISTS idx_cache_entries_scope ON cache_entries(scope);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertRecord inserts the record and its initial history row in one
// statement. The history insert only fires when the interview insert did.
func (s *PostgresStore) UpsertRecord(ctx context.Context, rec *model.InterviewRecord) (*model.InterviewRecord, bool, error) {
	now := time.Now().UTC()
	status := rec.Status
	if status == "" {
		status = model.StatusPreparing
	}

	tag, err := s.pool.Exec(ctx,
		`WITH ins AS (
			INSERT INTO interviews (email_id, candidate_name, company_name, role, interviewer,
				interview_date, interview_time, duration, location, format, status,
				raw_entities, content_hash, failure_reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
			ON CONFLICT (content_hash) DO NOTHING
			RETURNING id, status
		)
		INSERT INTO interview_history (interview_id, field_name, old_value, new_value, changed_at)
		SELECT id, 'status', '', status, $15 FROM ins`,
		rec.EmailID, rec.CandidateName, rec.CompanyName, rec.Role, rec.Interviewer,
		rec.InterviewDate, rec.InterviewTime, rec.Duration, rec.Location, rec.Format, string(status),
		nullJSON(rec.RawEntities), rec.ContentHash, rec.FailureReason, now,
	)
	created := false
	switch {
	case err == nil:
		created = tag.RowsAffected() == 1
	case db.IsUniqueViolation(err):
		// A concurrent writer won the race; fall through to the re-read.
	default:
		return nil, false, eris.Wrapf(err, "postgres: upsert interview %s", rec.ContentHash)
	}

	stored, err := s.GetRecordByHash(ctx, rec.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, eris.Errorf("postgres: interview vanished after upsert: %s", rec.ContentHash)
	}
	return stored, created, nil
}

func (s *PostgresStore) GetRecordByHash(ctx context.Context, contentHash string) (*model.InterviewRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM interviews WHERE content_hash = $1`,
		contentHash,
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get interview %s", contentHash)
	}
	return rec, nil
}

// UpdateRecordStatus sets status and reason and appends a history row when
// the status actually changed.
func (s *PostgresStore) UpdateRecordStatus(ctx context.Context, contentHash string, status model.RecordStatus, reason string) error {
	var id int64
	err := s.pool.QueryRow(ctx,
		`WITH prev AS (
			SELECT id, status FROM interviews WHERE content_hash = $1
		), upd AS (
			UPDATE interviews SET status = $2, failure_reason = $3, updated_at = $4
			WHERE content_hash = $1
			RETURNING id
		), hist AS (
			INSERT INTO interview_history (interview_id, field_name, old_value, new_value, changed_at)
			SELECT prev.id, 'status', prev.status, $2, $4 FROM prev WHERE prev.status <> $2
		)
		SELECT id FROM upd`,
		contentHash, string(status), reason, time.Now().UTC(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Errorf("interview not found: %s", contentHash)
	}
	return eris.Wrapf(err, "postgres: update status %s", contentHash)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.InterviewRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM interviews WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list interviews")
	}
	defer rows.Close()

	var out []model.InterviewRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan interview")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list interviews iterate")
}

func (s *PostgresStore) ListHistory(ctx context.Context, interviewID int64) ([]model.StatusChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT interview_id, field_name, old_value, new_value, changed_at
		 FROM interview_history WHERE interview_id = $1 ORDER BY id`,
		interviewID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	var out []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		if err := rows.Scan(&c.InterviewID, &c.FieldName, &c.OldValue, &c.NewValue, &c.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list history iterate")
}

func (s *PostgresStore) GetCacheEntry(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM cache_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache entry")
	}
	return value, nil
}

func (s *PostgresStore) SetCacheEntry(ctx context.Context, key, scope string, value []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, scope, value, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET scope = $2, value = $3, created_at = $4, expires_at = $5`,
		key, scope, value, now, expiresAt,
	)
	return eris.Wrap(err, "postgres: set cache entry")
}

func (s *PostgresStore) ClearCacheEntries(ctx context.Context, scope string) (int, error) {
	var (
		query = `DELETE FROM cache_entries`
		args  []any
	)
	if scope != "" {
		query += ` WHERE scope = $1`
		args = append(args, scope)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear cache entries")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountCacheEntries(ctx context.Context, scope string) (int, error) {
	query := `SELECT COUNT(*) FROM cache_entries WHERE (expires_at IS NULL OR expires_at > now())`
	var args []any
	if scope != "" {
		query += ` AND scope = $1`
		args = append(args, scope)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count cache entries")
	}
	return n, nil
}

func scanPgRecord(row pgx.Row) (*model.InterviewRecord, error) {
	var r model.InterviewRecord
	var status string
	var raw []byte
	err := row.Scan(&r.ID, &r.EmailID, &r.CandidateName, &r.CompanyName, &r.Role, &r.Interviewer,
		&r.InterviewDate, &r.InterviewTime, &r.Duration, &r.Location, &r.Format, &status,
		&raw, &r.ContentHash, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RecordStatus(status)
	if len(raw) > 0 {
		r.RawEntities = raw
	}
	return &r, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
