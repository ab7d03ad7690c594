package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/dat-tracker/treasury-cli/internal/db"
	"github.com/dat-tracker/treasury-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations; the merger hits the
// snapshot cell queries once per extracted fact.
var preparedStatements = map[string]string{
	"get_snapshot_cell": `SELECT id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at FROM snapshot_cells WHERE ticker = $1 AND field = $2 AND date = $3`,
	"put_snapshot_cell": `INSERT INTO snapshot_cells (id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT (ticker, date, field) DO UPDATE SET value = EXCLUDED.value, unit = EXCLUDED.unit, source = EXCLUDED.source, source_url = EXCLUDED.source_url, excerpt = EXCLUDED.excerpt, backfill = EXCLUDED.backfill, updated_at = EXCLUDED.updated_at`,
	"insert_discrepancy": `INSERT INTO discrepancies (id, ticker, field, date, existing_value, candidate_value, existing_source, candidate_source, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"dlq_exists":         `SELECT 1 FROM dead_letters WHERE kind = $1 AND ticker = $2 AND mode = $3 LIMIT 1`,
	"insert_dead_letter": `INSERT INTO dead_letters (id, kind, ticker, mode, payload, logged_at) VALUES ($1, $2, $3, $4, $5, $6)`,
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
CREATE TABLE IF NOT EXISTS snapshot_cells (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker     TEXT NOT NULL,
	date       DATE NOT NULL,
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	unit       TEXT NOT NULL,
	source     TEXT NOT NULL,
	source_url TEXT NOT NULL,
	excerpt    TEXT NOT NULL DEFAULT '',
	backfill   BOOLEAN NOT NULL DEFAULT false,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (ticker, date, field)
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker           TEXT NOT NULL,
	field            TEXT NOT NULL,
	date             DATE NOT NULL,
	existing_value   TEXT NOT NULL,
	candidate_value  TEXT NOT NULL,
	existing_source  TEXT NOT NULL,
	candidate_source TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'open',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind      TEXT NOT NULL,
	ticker    TEXT NOT NULL DEFAULT '',
	mode      TEXT NOT NULL DEFAULT '',
	payload   JSONB,
	logged_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_results (
	ticker         TEXT PRIMARY KEY,
	verified       BOOLEAN NOT NULL,
	hard           JSONB NOT NULL,
	warn           JSONB NOT NULL,
	policy_version TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	evaluated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_cells_ticker_date ON snapshot_cells(ticker, date);
CREATE INDEX IF NOT EXISTS idx_discrepancies_ticker ON discrepancies(ticker);
CREATE INDEX IF NOT EXISTS idx_discrepancies_status ON discrepancies(status);
CREATE INDEX IF NOT EXISTS idx_dead_letters_dedupe ON dead_letters(kind, ticker, mode);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

func (s *PostgresStore) GetSnapshotCell(ctx context.Context, ticker, field string, date time.Time) (*model.SnapshotRow, error) {
	var cell model.SnapshotRow
	var value, source string

	err := s.pool.QueryRow(ctx,
		`SELECT id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at FROM snapshot_cells WHERE ticker = $1 AND field = $2 AND date = $3`,
		ticker, field, date.UTC().Truncate(24*time.Hour),
	).Scan(&cell.ID, &cell.Ticker, &cell.Date, &cell.Field, &value, &cell.Unit,
		&source, &cell.SourceURL, &cell.Excerpt, &cell.Backfill, &cell.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot cell %s/%s", ticker, field)
	}

	if cell.Value, err = decimal.NewFromString(value); err != nil {
		return nil, eris.Wrap(err, "postgres: parse snapshot value")
	}
	cell.Source = model.SourceClass(source)
	return &cell, nil
}

func (s *PostgresStore) PutSnapshotCell(ctx context.Context, row *model.SnapshotRow) error {
	id := row.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshot_cells (id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT (ticker, date, field) DO UPDATE SET value = EXCLUDED.value, unit = EXCLUDED.unit, source = EXCLUDED.source, source_url = EXCLUDED.source_url, excerpt = EXCLUDED.excerpt, backfill = EXCLUDED.backfill, updated_at = EXCLUDED.updated_at`,
		id, row.Ticker, row.Date.UTC().Truncate(24*time.Hour), row.Field, row.Value.String(), row.Unit,
		string(row.Source), row.SourceURL, row.Excerpt, row.Backfill, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put snapshot cell %s/%s", row.Ticker, row.Field)
}

func (s *PostgresStore) ListSnapshotRows(ctx context.Context, ticker string) ([]model.SnapshotRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at FROM snapshot_cells WHERE ticker = $1 ORDER BY date ASC, field ASC`,
		ticker,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshot rows")
	}
	defer rows.Close()

	var out []model.SnapshotRow
	for rows.Next() {
		var cell model.SnapshotRow
		var value, source string
		if err := rows.Scan(&cell.ID, &cell.Ticker, &cell.Date, &cell.Field, &value, &cell.Unit,
			&source, &cell.SourceURL, &cell.Excerpt, &cell.Backfill, &cell.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot cell")
		}
		if cell.Value, err = decimal.NewFromString(value); err != nil {
			return nil, eris.Wrap(err, "postgres: parse snapshot value")
		}
		cell.Source = model.SourceClass(source)
		out = append(out, cell)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshot rows iterate")
}

func (s *PostgresStore) CreateDiscrepancy(ctx context.Context, d *model.Discrepancy) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = model.DiscrepancyOpen
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO discrepancies (id, ticker, field, date, existing_value, candidate_value, existing_source, candidate_source, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Ticker, d.Field, d.Date.UTC().Truncate(24*time.Hour), d.ExistingValue.String(), d.CandidateValue.String(),
		d.ExistingSource, d.CandidateSource, string(d.Status), d.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert discrepancy %s/%s", d.Ticker, d.Field)
}

func (s *PostgresStore) ListDiscrepancies(ctx context.Context, filter DiscrepancyFilter) ([]model.Discrepancy, error) {
	query := `SELECT id, ticker, field, date, existing_value, candidate_value, existing_source, candidate_source, status, created_at, resolved_at FROM discrepancies WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Ticker != "" {
		query += fmt.Sprintf(` AND ticker = $%d`, argIdx)
		args = append(args, filter.Ticker)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list discrepancies")
	}
	defer rows.Close()

	var out []model.Discrepancy
	for rows.Next() {
		var d model.Discrepancy
		var existing, candidate string
		var resolvedAt *time.Time
		if err := rows.Scan(&d.ID, &d.Ticker, &d.Field, &d.Date, &existing, &candidate,
			&d.ExistingSource, &d.CandidateSource, &d.Status, &d.CreatedAt, &resolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan discrepancy")
		}
		if d.ExistingValue, err = decimal.NewFromString(existing); err != nil {
			return nil, eris.Wrap(err, "postgres: parse existing value")
		}
		if d.CandidateValue, err = decimal.NewFromString(candidate); err != nil {
			return nil, eris.Wrap(err, "postgres: parse candidate value")
		}
		d.ResolvedAt = resolvedAt
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list discrepancies iterate")
}

func (s *PostgresStore) ResolveDiscrepancy(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discrepancies SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
		string(model.DiscrepancyResolved), time.Now().UTC(), id, string(model.DiscrepancyOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve discrepancy %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("open discrepancy not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) PushDLQ(ctx context.Context, item *model.DLQItem, dedupe bool) (bool, error) {
	if dedupe {
		var one int
		err := s.pool.QueryRow(ctx,
			`SELECT 1 FROM dead_letters WHERE kind = $1 AND ticker = $2 AND mode = $3 LIMIT 1`,
			item.Kind, item.Ticker, item.Mode,
		).Scan(&one)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, eris.Wrap(err, "postgres: dlq dedupe check")
		}
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.LoggedAt.IsZero() {
		item.LoggedAt = time.Now().UTC()
	}

	payload := []byte(item.Payload)
	if len(payload) == 0 {
		payload = nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letters (id, kind, ticker, mode, payload, logged_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.Kind, item.Ticker, item.Mode, payload, item.LoggedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: push dlq %s", item.Kind)
	}
	return true, nil
}

func (s *PostgresStore) ListDLQ(ctx context.Context, filter DLQFilter) ([]model.DLQItem, error) {
	query := `SELECT id, kind, ticker, mode, payload, logged_at FROM dead_letters WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.Ticker != "" {
		query += fmt.Sprintf(` AND ticker = $%d`, argIdx)
		args = append(args, filter.Ticker)
		argIdx++
	}
	query += ` ORDER BY logged_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var out []model.DLQItem
	for rows.Next() {
		var item model.DLQItem
		var payload []byte
		if err := rows.Scan(&item.ID, &item.Kind, &item.Ticker, &item.Mode, &payload, &item.LoggedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq item")
		}
		if len(payload) > 0 {
			item.Payload = json.RawMessage(payload)
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dlq iterate")
}

// SaveVerificationResults bulk-upserts the latest evaluation per ticker.
func (s *PostgresStore) SaveVerificationResults(ctx context.Context, results []model.VerificationResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		hard, err := json.Marshal(r.Hard)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal hard codes")
		}
		warn, err := json.Marshal(r.Warn)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal warn codes")
		}
		rows = append(rows, []any{r.Ticker, r.Verified, hard, warn, r.PolicyVersion, r.RunID, r.EvaluatedAt.UTC()})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "verification_results",
		Columns:      []string{"ticker", "verified", "hard", "warn", "policy_version", "run_id", "evaluated_at"},
		ConflictKeys: []string{"ticker"},
	}, rows)
	return eris.Wrap(err, "postgres: save verification results")
}

func (s *PostgresStore) ListVerificationResults(ctx context.Context) ([]model.VerificationResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, verified, hard, warn, policy_version, run_id, evaluated_at FROM verification_results ORDER BY ticker ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list verification results")
	}
	defer rows.Close()

	var out []model.VerificationResult
	for rows.Next() {
		var r model.VerificationResult
		var hard, warn []byte
		if err := rows.Scan(&r.Ticker, &r.Verified, &hard, &warn, &r.PolicyVersion, &r.RunID, &r.EvaluatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verification result")
		}
		if err := json.Unmarshal(hard, &r.Hard); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal hard codes")
		}
		if err := json.Unmarshal(warn, &r.Warn); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal warn codes")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list verification results iterate")
}
