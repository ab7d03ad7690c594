package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// copyThreshold is the batch size above which BulkUpsert switches from a
// multirow INSERT to COPY through a temp table.
const copyThreshold = 50

// UpsertConfig names the target of a keyed bulk write.
type UpsertConfig struct {
	Table        string   // target table (e.g., "verification_results")
	Columns      []string // all columns being written
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-key columns
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

// updateColumns resolves the SET list, defaulting to every non-key column.
func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, col := range c.Columns {
		if !keys[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// BulkUpsert writes rows with INSERT ... ON CONFLICT DO UPDATE semantics.
// Small batches go through a single multirow INSERT; large batches COPY into
// a transaction-scoped temp table first. Either way the write is one
// transaction and replaying it is a no-op for unchanged rows.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	if len(rows) < copyThreshold {
		return valuesUpsert(ctx, pool, cfg, rows)
	}
	return copyUpsert(ctx, pool, cfg, rows)
}

// valuesUpsert binds every row into one parameterized INSERT.
func valuesUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	width := len(cfg.Columns)
	args := make([]any, 0, len(rows)*width)
	groups := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return 0, eris.Errorf("db: upsert: row %d has %d values, want %d", i, len(row), width)
		}
		ph := make([]string, width)
		for j := range row {
			ph[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		groups = append(groups, "("+strings.Join(ph, ", ")+")")
		args = append(args, row...)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		qualifyTable(cfg.Table),
		identList(cfg.Columns),
		strings.Join(groups, ", "),
		identList(cfg.ConflictKeys),
		excludedSet(cfg.updateColumns()),
	)

	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: insert into %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// copyUpsert stages the batch in a temp table and merges it in one statement.
// The temp table drops with the transaction.
func copyUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := "_staging_" + strings.ReplaceAll(cfg.Table, ".", "_")
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(),
		qualifyTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into staging for %s", cfg.Table)
	}

	merge := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		qualifyTable(cfg.Table),
		identList(cfg.Columns),
		identList(cfg.Columns),
		pgx.Identifier{staging}.Sanitize(),
		identList(cfg.ConflictKeys),
		excludedSet(cfg.updateColumns()),
	)
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge staging into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// qualifyTable sanitizes an optionally schema-qualified table name.
func qualifyTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// identList quotes column names and joins them with commas.
func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// excludedSet builds the DO UPDATE SET list from EXCLUDED values.
func excludedSet(cols []string) string {
	clauses := make([]string, len(cols))
	for i, col := range cols {
		q := pgx.Identifier{col}.Sanitize()
		clauses[i] = q + " = EXCLUDED." + q
	}
	return strings.Join(clauses, ", ")
}
