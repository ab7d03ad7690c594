// Package merge folds extracted facts into the canonical snapshot.
// The merger is the single write path for snapshot cells: every fact,
// whether pattern-extracted or from the XBRL feed, goes through Merge.
package merge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

// Result reports what Merge did with a candidate fact.
type Result struct {
	// Applied is true when the candidate became (or replaced) the
	// authoritative value. Re-merging an identical fact is a no-op.
	Applied bool
	// Discrepancy is set when the candidate conflicted with the stored
	// value and did not take precedence. The stored value stays
	// authoritative until an operator resolves it.
	Discrepancy *model.Discrepancy
}

// Merger applies facts to the store under the precedence rules.
type Merger struct {
	store store.Store
}

func NewMerger(st store.Store) *Merger {
	return &Merger{store: st}
}

// effectiveRank orders candidates for the same cell. Source class
// dominates; within a class a backfilled fact ranks below a live one.
// Recency never participates.
func effectiveRank(src model.SourceClass, backfill bool) int {
	r := src.Rank() * 2
	if !backfill {
		r++
	}
	return r
}

// Merge applies one fact to the (ticker, date, field) cell.
//
// Absent cell: the fact is written. Identical value: no-op. Different
// value from a strictly higher-ranked source: the value is replaced and
// the cell's provenance points at the superseding fact. Otherwise the
// conflict is recorded as an open Discrepancy and the stored value stays.
func (m *Merger) Merge(ctx context.Context, fact model.ExtractedFact) (Result, error) {
	if fact.Ticker == "" {
		return Result{}, eris.New("merge: fact has no ticker")
	}
	if fact.AsOf.IsZero() {
		return Result{}, eris.New("merge: fact has no as-of date")
	}
	if fact.Kind == "" {
		return Result{}, eris.New("merge: fact has no kind")
	}

	field := fact.Field()
	existing, err := m.store.GetSnapshotCell(ctx, fact.Ticker, field, fact.AsOf)
	if err != nil {
		return Result{}, eris.Wrap(err, "merge: read cell")
	}

	if existing == nil {
		if err := m.store.PutSnapshotCell(ctx, cellFromFact(fact)); err != nil {
			return Result{}, eris.Wrap(err, "merge: write cell")
		}
		return Result{Applied: true}, nil
	}

	candRank := effectiveRank(fact.Source, fact.Backfill)
	existRank := effectiveRank(existing.Source, existing.Backfill)

	if existing.Value.Equal(fact.Value) && existing.Unit == fact.Unit {
		// Values agree; a higher-ranked source still upgrades provenance.
		if candRank <= existRank {
			return Result{Applied: false}, nil
		}
		if err := m.store.PutSnapshotCell(ctx, cellFromFact(fact)); err != nil {
			return Result{}, eris.Wrap(err, "merge: upgrade provenance")
		}
		return Result{Applied: true}, nil
	}

	if candRank > existRank {
		zap.L().Info("merge: superseding value",
			zap.String("ticker", fact.Ticker),
			zap.String("field", field),
			zap.String("date", fact.AsOf.Format("2006-01-02")),
			zap.String("old_source", string(existing.Source)),
			zap.String("new_source", string(fact.Source)),
			zap.String("old_value", existing.Value.String()),
			zap.String("new_value", fact.Value.String()),
		)
		if err := m.store.PutSnapshotCell(ctx, cellFromFact(fact)); err != nil {
			return Result{}, eris.Wrap(err, "merge: supersede cell")
		}
		return Result{Applied: true}, nil
	}

	d := &model.Discrepancy{
		Ticker:          fact.Ticker,
		Field:           field,
		Date:            fact.AsOf,
		ExistingValue:   existing.Value,
		CandidateValue:  fact.Value,
		ExistingSource:  string(existing.Source),
		CandidateSource: string(fact.Source),
		Status:          model.DiscrepancyOpen,
	}
	if err := m.store.CreateDiscrepancy(ctx, d); err != nil {
		return Result{}, eris.Wrap(err, "merge: record discrepancy")
	}
	zap.L().Warn("merge: conflicting value, keeping existing",
		zap.String("ticker", fact.Ticker),
		zap.String("field", field),
		zap.String("date", fact.AsOf.Format("2006-01-02")),
		zap.String("existing", existing.Value.String()),
		zap.String("candidate", fact.Value.String()),
	)
	return Result{Applied: false, Discrepancy: d}, nil
}

func cellFromFact(fact model.ExtractedFact) *model.SnapshotRow {
	return &model.SnapshotRow{
		Ticker:    fact.Ticker,
		Date:      fact.AsOf,
		Field:     fact.Field(),
		Value:     fact.Value,
		Unit:      fact.Unit,
		Source:    fact.Source,
		SourceURL: fact.Provenance.SourceURL,
		Excerpt:   fact.Provenance.Excerpt,
		Backfill:  fact.Backfill,
	}
}
