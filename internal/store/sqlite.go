package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dat-tracker/treasury-cli/internal/model"
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
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshot_cells (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	date       TEXT NOT NULL,
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	unit       TEXT NOT NULL,
	source     TEXT NOT NULL,
	source_url TEXT NOT NULL,
	excerpt    TEXT NOT NULL DEFAULT '',
	backfill   INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL,
	UNIQUE (ticker, date, field)
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id               TEXT PRIMARY KEY,
	ticker           TEXT NOT NULL,
	field            TEXT NOT NULL,
	date             TEXT NOT NULL,
	existing_value   TEXT NOT NULL,
	candidate_value  TEXT NOT NULL,
	existing_source  TEXT NOT NULL,
	candidate_source TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'open',
	created_at       DATETIME NOT NULL,
	resolved_at      DATETIME
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	ticker    TEXT NOT NULL DEFAULT '',
	mode      TEXT NOT NULL DEFAULT '',
	payload   TEXT,
	logged_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_results (
	ticker         TEXT PRIMARY KEY,
	verified       INTEGER NOT NULL,
	hard           TEXT NOT NULL,
	warn           TEXT NOT NULL,
	policy_version TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	evaluated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_cells_ticker_date ON snapshot_cells(ticker, date);
CREATE INDEX IF NOT EXISTS idx_discrepancies_ticker ON discrepancies(ticker);
CREATE INDEX IF NOT EXISTS idx_discrepancies_status ON discrepancies(status);
CREATE INDEX IF NOT EXISTS idx_dead_letters_dedupe ON dead_letters(kind, ticker, mode);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// dateKey is the canonical snapshot date encoding. Lexicographic order on
// the key is chronological order.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (s *SQLiteStore) GetSnapshotCell(ctx context.Context, ticker, field string, date time.Time) (*model.SnapshotRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at
		 FROM snapshot_cells WHERE ticker = ? AND field = ? AND date = ?`,
		ticker, field, dateKey(date),
	)
	cell, err := scanSnapshotCell(row)
	if err == errNoCell {
		return nil, nil
	}
	return cell, err
}

func (s *SQLiteStore) PutSnapshotCell(ctx context.Context, row *model.SnapshotRow) error {
	id := row.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot_cells (id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ticker, date, field) DO UPDATE SET
		   value = excluded.value,
		   unit = excluded.unit,
		   source = excluded.source,
		   source_url = excluded.source_url,
		   excerpt = excluded.excerpt,
		   backfill = excluded.backfill,
		   updated_at = excluded.updated_at`,
		id, row.Ticker, dateKey(row.Date), row.Field, row.Value.String(), row.Unit,
		string(row.Source), row.SourceURL, row.Excerpt, row.Backfill, now,
	)
	return eris.Wrapf(err, "sqlite: put snapshot cell %s/%s", row.Ticker, row.Field)
}

func (s *SQLiteStore) ListSnapshotRows(ctx context.Context, ticker string) ([]model.SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticker, date, field, value, unit, source, source_url, excerpt, backfill, updated_at
		 FROM snapshot_cells WHERE ticker = ? ORDER BY date ASC, field ASC`,
		ticker,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshot rows")
	}
	defer rows.Close()

	var out []model.SnapshotRow
	for rows.Next() {
		cell, err := scanSnapshotCell(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cell)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshot rows iterate")
}

func (s *SQLiteStore) CreateDiscrepancy(ctx context.Context, d *model.Discrepancy) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = model.DiscrepancyOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO discrepancies (id, ticker, field, date, existing_value, candidate_value, existing_source, candidate_source, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Ticker, d.Field, dateKey(d.Date), d.ExistingValue.String(), d.CandidateValue.String(),
		d.ExistingSource, d.CandidateSource, string(d.Status), d.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert discrepancy %s/%s", d.Ticker, d.Field)
}

func (s *SQLiteStore) ListDiscrepancies(ctx context.Context, filter DiscrepancyFilter) ([]model.Discrepancy, error) {
	query := `SELECT id, ticker, field, date, existing_value, candidate_value, existing_source, candidate_source, status, created_at, resolved_at
	          FROM discrepancies WHERE 1=1`
	var args []any

	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list discrepancies")
	}
	defer rows.Close()

	var out []model.Discrepancy
	for rows.Next() {
		var d model.Discrepancy
		var date, existing, candidate string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.Ticker, &d.Field, &date, &existing, &candidate,
			&d.ExistingSource, &d.CandidateSource, &d.Status, &d.CreatedAt, &resolvedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan discrepancy")
		}
		if d.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse discrepancy date")
		}
		if d.ExistingValue, err = decimal.NewFromString(existing); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse existing value")
		}
		if d.CandidateValue, err = decimal.NewFromString(candidate); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse candidate value")
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			d.ResolvedAt = &t
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list discrepancies iterate")
}

func (s *SQLiteStore) ResolveDiscrepancy(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discrepancies SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(model.DiscrepancyResolved), time.Now().UTC(), id, string(model.DiscrepancyOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve discrepancy %s", id)
	}
	return checkRowsAffected(res, "open discrepancy", id)
}

func (s *SQLiteStore) PushDLQ(ctx context.Context, item *model.DLQItem, dedupe bool) (bool, error) {
	if dedupe {
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM dead_letters WHERE kind = ? AND ticker = ? AND mode = ? LIMIT 1`,
			item.Kind, item.Ticker, item.Mode,
		).Scan(&one)
		if err == nil {
			return false, nil
		}
		if err != sql.ErrNoRows {
			return false, eris.Wrap(err, "sqlite: dlq dedupe check")
		}
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.LoggedAt.IsZero() {
		item.LoggedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, kind, ticker, mode, payload, logged_at) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Kind, item.Ticker, item.Mode, string(item.Payload), item.LoggedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: push dlq %s", item.Kind)
	}
	return true, nil
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, filter DLQFilter) ([]model.DLQItem, error) {
	query := `SELECT id, kind, ticker, mode, payload, logged_at FROM dead_letters WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	query += ` ORDER BY logged_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	var out []model.DLQItem
	for rows.Next() {
		var item model.DLQItem
		var payload sql.NullString
		if err := rows.Scan(&item.ID, &item.Kind, &item.Ticker, &item.Mode, &payload, &item.LoggedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq item")
		}
		if payload.Valid && payload.String != "" {
			item.Payload = json.RawMessage(payload.String)
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dlq iterate")
}

func (s *SQLiteStore) SaveVerificationResults(ctx context.Context, results []model.VerificationResult) error {
	for _, r := range results {
		hard, err := json.Marshal(r.Hard)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal hard codes")
		}
		warn, err := json.Marshal(r.Warn)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal warn codes")
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO verification_results (ticker, verified, hard, warn, policy_version, run_id, evaluated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (ticker) DO UPDATE SET
			   verified = excluded.verified,
			   hard = excluded.hard,
			   warn = excluded.warn,
			   policy_version = excluded.policy_version,
			   run_id = excluded.run_id,
			   evaluated_at = excluded.evaluated_at`,
			r.Ticker, r.Verified, string(hard), string(warn), r.PolicyVersion, r.RunID, r.EvaluatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save verification result %s", r.Ticker)
		}
	}
	return nil
}

func (s *SQLiteStore) ListVerificationResults(ctx context.Context) ([]model.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, verified, hard, warn, policy_version, run_id, evaluated_at
		 FROM verification_results ORDER BY ticker ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list verification results")
	}
	defer rows.Close()

	var out []model.VerificationResult
	for rows.Next() {
		var r model.VerificationResult
		var hard, warn string
		if err := rows.Scan(&r.Ticker, &r.Verified, &hard, &warn, &r.PolicyVersion, &r.RunID, &r.EvaluatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verification result")
		}
		if err := json.Unmarshal([]byte(hard), &r.Hard); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal hard codes")
		}
		if err := json.Unmarshal([]byte(warn), &r.Warn); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal warn codes")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verification results iterate")
}

// helpers

var errNoCell = eris.New("snapshot cell not found")

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

func scanSnapshotCell(row scannable) (*model.SnapshotRow, error) {
	var cell model.SnapshotRow
	var date, value, source string

	err := row.Scan(&cell.ID, &cell.Ticker, &date, &cell.Field, &value, &cell.Unit,
		&source, &cell.SourceURL, &cell.Excerpt, &cell.Backfill, &cell.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoCell
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot cell")
	}

	if cell.Date, err = time.Parse("2006-01-02", date); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse snapshot date")
	}
	if cell.Value, err = decimal.NewFromString(value); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse snapshot value")
	}
	cell.Source = model.SourceClass(source)
	return &cell, nil
}
