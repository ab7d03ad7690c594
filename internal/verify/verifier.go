package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

// Verifier evaluates companies' merged datasets against a policy and
// persists the outcome.
type Verifier struct {
	store  store.Store
	policy *Policy
}

func NewVerifier(st store.Store, p *Policy) *Verifier {
	return &Verifier{store: st, policy: p}
}

// Policy returns the policy in force.
func (v *Verifier) Policy() *Policy {
	return v.policy
}

// VerifyCompany evaluates one company. A storage read failure becomes a
// read_failed issue rather than aborting, so one broken dataset cannot
// block the rest of the run.
func (v *Verifier) VerifyCompany(ctx context.Context, company model.Company, runID string) model.VerificationResult {
	var codes []string
	rows, err := v.store.ListSnapshotRows(ctx, company.Ticker)
	if err != nil {
		zap.L().Error("verify: read snapshot failed",
			zap.String("ticker", company.Ticker), zap.Error(err))
		codes = []string{"read_failed:" + eris.Cause(err).Error()}
	} else {
		codes = CheckSnapshot(company, rows)
	}

	verified, hard, warn := v.policy.Evaluate(codes)
	return model.VerificationResult{
		Ticker:        company.Ticker,
		Verified:      verified,
		Hard:          hard,
		Warn:          warn,
		PolicyVersion: v.policy.Version,
		RunID:         runID,
		EvaluatedAt:   time.Now().UTC(),
	}
}

// Run evaluates every company, saves the results, and returns the
// verified-state artifact built from the latest result per ticker. The
// artifact covers tickers from earlier runs too; a company with no
// successful run has no entry.
func (v *Verifier) Run(ctx context.Context, companies []model.Company, runID string) (*model.VerifiedState, error) {
	results := make([]model.VerificationResult, 0, len(companies))
	for _, c := range companies {
		r := v.VerifyCompany(ctx, c, runID)
		results = append(results, r)
		zap.L().Info("verify: evaluated company",
			zap.String("ticker", r.Ticker),
			zap.Bool("verified", r.Verified),
			zap.Strings("hard", r.Hard),
			zap.Strings("warn", r.Warn),
		)
	}

	if err := v.store.SaveVerificationResults(ctx, results); err != nil {
		return nil, eris.Wrap(err, "verify: save results")
	}

	all, err := v.store.ListVerificationResults(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "verify: list results")
	}
	return BuildVerifiedState(all, v.policy.Version, runID), nil
}
