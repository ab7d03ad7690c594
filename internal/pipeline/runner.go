// Package pipeline orchestrates per-company ingestion runs: locate
// filings, fetch documents, extract facts, merge them into the canonical
// snapshot, and evaluate the result against the verifier policy.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dat-tracker/treasury-cli/internal/config"
	"github.com/dat-tracker/treasury-cli/internal/edgar"
	"github.com/dat-tracker/treasury-cli/internal/extract"
	"github.com/dat-tracker/treasury-cli/internal/merge"
	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/resilience"
	"github.com/dat-tracker/treasury-cli/internal/store"
	"github.com/dat-tracker/treasury-cli/internal/verify"
	"github.com/dat-tracker/treasury-cli/internal/xbrl"
)

// CompanySummary reports what one company's run did.
type CompanySummary struct {
	Ticker       string `json:"ticker"`
	Filings      int    `json:"filings"`
	Documents    int    `json:"documents"`
	FactsMerged  int    `json:"facts_merged"`
	Conflicts    int    `json:"conflicts"`
	DeadLettered int    `json:"dead_lettered"`
	// SoftFailures counts failures that degraded the run without aborting
	// it, dead-letter writes included.
	SoftFailures int `json:"soft_failures"`
	// Failed marks a company whose run could not proceed at all. Other
	// companies in the batch are unaffected.
	Failed bool `json:"failed"`
}

// RunSummary is the outcome of one batch run.
type RunSummary struct {
	RunID     string               `json:"run_id"`
	StartedAt time.Time            `json:"started_at"`
	Companies []CompanySummary     `json:"companies"`
	State     *model.VerifiedState `json:"state,omitempty"`
}

// Runner drives ingestion for a set of companies.
type Runner struct {
	cfg      *config.Config
	client   *edgar.Client
	locator  *edgar.Locator
	registry *extract.Registry
	merger   *merge.Merger
	verifier *verify.Verifier
	store    store.Store
	dedupe   map[string]bool
	retry    resilience.RetryConfig
	now      func() time.Time
}

// NewRunner wires the pipeline from configuration. The store is shared
// with the caller, which owns its lifecycle.
func NewRunner(cfg *config.Config, st store.Store) (*Runner, error) {
	client, err := edgar.NewClient(edgar.ClientOptions{
		UserAgent:  cfg.Edgar.UserAgent,
		CacheDir:   cfg.Edgar.CacheDir,
		CacheTTL:   time.Duration(cfg.Edgar.CacheTTLHours) * time.Hour,
		Timeout:    time.Duration(cfg.Edgar.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Edgar.RatePerSec,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build client")
	}

	policy, err := verify.LoadPolicy(cfg.Verify.PolicyFile)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load policy")
	}

	dedupe := make(map[string]bool, len(cfg.Ingest.DLQDedupeKinds))
	for _, k := range cfg.Ingest.DLQDedupeKinds {
		dedupe[k] = true
	}

	return &Runner{
		cfg:      cfg,
		client:   client,
		locator:  edgar.NewLocator(client, cfg.Edgar.SubmissionsHost, cfg.Edgar.ArchiveHost),
		registry: extract.NewRegistry(),
		merger:   merge.NewMerger(st),
		verifier: verify.NewVerifier(st, policy),
		store:    st,
		dedupe:   dedupe,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			OnRetry:        resilience.RetryLogger("edgar fetch"),
		},
		now: time.Now,
	}, nil
}

// RunAll ingests every company concurrently, bounded by the configured
// limit, then evaluates the batch and writes the verified-state artifact.
// One company's failure never propagates to the others.
func (r *Runner) RunAll(ctx context.Context, companies []model.Company) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: r.now().UTC(),
		Companies: make([]CompanySummary, len(companies)),
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.Ingest.MaxConcurrentCompanies
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	for i, company := range companies {
		g.Go(func() error {
			cs := r.runCompany(gctx, company)
			mu.Lock()
			summary.Companies[i] = cs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "pipeline: batch")
	}
	if err := ctx.Err(); err != nil {
		return summary, eris.Wrap(err, "pipeline: batch canceled")
	}

	state, err := r.verifier.Run(ctx, companies, summary.RunID)
	if err != nil {
		return summary, eris.Wrap(err, "pipeline: verify")
	}
	if err := verify.WriteState(r.cfg.Verify.StatePath, state); err != nil {
		return summary, err
	}
	summary.State = state
	return summary, nil
}

// runCompany executes one company's stages sequentially. Failures are
// scoped: a filing that cannot be located or parsed goes to the dead
// letters and the run moves on.
func (r *Runner) runCompany(ctx context.Context, company model.Company) CompanySummary {
	sum := CompanySummary{Ticker: company.Ticker}
	log := zap.L().With(zap.String("ticker", company.Ticker))

	filings, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) ([]model.Filing, error) {
		return r.locator.ListFilings(ctx, company.CIK)
	})
	if err != nil {
		log.Error("pipeline: list filings failed", zap.Error(err))
		r.deadLetter(ctx, &sum, model.DLQKindFetchFailed, company.Ticker, "submissions",
			map[string]string{"cik": company.CIK, "error": eris.Cause(err).Error()})
		sum.Failed = true
		return sum
	}

	filings = r.selectFilings(filings)
	sum.Filings = len(filings)

	for _, filing := range filings {
		if ctx.Err() != nil {
			return sum
		}
		r.ingestFiling(ctx, company, filing, &sum, log)
	}

	r.ingestCompanyFacts(ctx, company, &sum, log)

	log.Info("pipeline: company run complete",
		zap.Int("filings", sum.Filings),
		zap.Int("documents", sum.Documents),
		zap.Int("facts_merged", sum.FactsMerged),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("dead_lettered", sum.DeadLettered),
	)
	return sum
}

// selectFilings applies the recency window and cap, then flips to
// oldest-first so merges replay in filing order.
func (r *Runner) selectFilings(filings []model.Filing) []model.Filing {
	if r.cfg.Ingest.SinceDays > 0 {
		cutoff := r.now().AddDate(0, 0, -r.cfg.Ingest.SinceDays)
		kept := filings[:0]
		for _, f := range filings {
			if !f.FilingDate.Before(cutoff) {
				kept = append(kept, f)
			}
		}
		filings = kept
	}
	if max := r.cfg.Ingest.MaxFilings; max > 0 && len(filings) > max {
		filings = filings[:max]
	}
	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate.Before(filings[j].FilingDate)
	})
	return filings
}

func (r *Runner) ingestFiling(ctx context.Context, company model.Company, filing model.Filing, sum *CompanySummary, log *zap.Logger) {
	docURL, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.locator.ResolveFilingDocument(ctx, &filing)
	})
	if err != nil {
		if eris.Is(err, edgar.ErrDocumentNotFound) {
			r.deadLetter(ctx, sum, model.DLQKindPrimaryDocumentMissing, company.Ticker, filing.FormType,
				map[string]string{"accession": filing.Accession, "filed": filing.FilingDate.Format("2006-01-02")})
			return
		}
		log.Warn("pipeline: resolve primary document failed",
			zap.String("accession", filing.Accession), zap.Error(err))
		r.deadLetter(ctx, sum, model.DLQKindFetchFailed, company.Ticker, "index",
			map[string]string{"accession": filing.Accession, "error": eris.Cause(err).Error()})
		return
	}

	res, err := r.fetch(ctx, docURL)
	if err != nil {
		log.Warn("pipeline: fetch document failed", zap.String("url", docURL), zap.Error(err))
		r.deadLetter(ctx, sum, model.DLQKindFetchFailed, company.Ticker, "document",
			map[string]string{"url": docURL, "error": eris.Cause(err).Error()})
		return
	}
	sum.Documents++

	doc := extract.NewDocument(docURL, res.Body, company.Asset)
	extracted, failures := 0, 0
	for _, kind := range r.extractionKinds() {
		facts, err := r.registry.Extract(kind, doc)
		if err != nil {
			failures++
			var pe *resilience.ParseError
			if errors.As(err, &pe) {
				r.deadLetter(ctx, sum, model.DLQKindExtractParse, company.Ticker, string(kind),
					map[string]string{"url": docURL, "input": pe.Input, "reason": pe.Reason})
				continue
			}
			log.Warn("pipeline: extractor failed", zap.String("kind", string(kind)), zap.Error(err))
			sum.SoftFailures++
			continue
		}
		extracted += len(facts)

		// A filing disclosing several purchases yields several capital
		// events; they aggregate to the day's total before merging so
		// the cell holds one figure per date.
		if kind == extract.KindCapitalEvent && len(facts) > 1 {
			facts = aggregateCapitalEvents(facts)
		}

		for _, fact := range facts {
			fact.Ticker = company.Ticker
			fact.AsOf = filing.FilingDate
			fact.Backfill = r.cfg.Ingest.Backfill
			r.mergeFact(ctx, fact, sum, log)
		}
	}

	// A disclosure filing that every extractor came up empty on is an
	// extraction miss, not a benign absence.
	if extracted == 0 && failures == 0 {
		r.deadLetter(ctx, sum, model.DLQKindExtractNoMatch, company.Ticker, filing.FormType,
			map[string]string{"url": docURL, "accession": filing.Accession})
	}
}

// ingestCompanyFacts pulls the XBRL balance-sheet feed and merges the
// latest value per kind, dead-lettering stale facts instead of merging
// figures the filings have long superseded.
func (r *Runner) ingestCompanyFacts(ctx context.Context, company model.Company, sum *CompanySummary, log *zap.Logger) {
	cik, err := edgar.NormalizeCIK(company.CIK)
	if err != nil {
		log.Warn("pipeline: bad CIK", zap.String("cik", company.CIK), zap.Error(err))
		sum.SoftFailures++
		return
	}

	factsURL := r.locator.CompanyFactsURL(cik)
	res, err := r.fetch(ctx, factsURL)
	if err != nil {
		if eris.Is(err, resilience.ErrNotFound) {
			r.deadLetter(ctx, sum, model.DLQKindCompanyFacts404, company.Ticker, "xbrl",
				map[string]string{"cik": cik})
			return
		}
		log.Warn("pipeline: fetch companyfacts failed", zap.Error(err))
		r.deadLetter(ctx, sum, model.DLQKindFetchFailed, company.Ticker, "xbrl",
			map[string]string{"url": factsURL, "error": eris.Cause(err).Error()})
		return
	}

	facts, err := xbrl.ParseCompanyFacts(res.Body)
	if err != nil {
		r.deadLetter(ctx, sum, model.DLQKindExtractParse, company.Ticker, "xbrl",
			map[string]string{"url": factsURL, "error": eris.Cause(err).Error()})
		return
	}

	latest := xbrl.LatestPerKind(xbrl.ExtractTreasuryFacts(facts, company.Ticker, factsURL))
	maxAge := r.cfg.Ingest.MaxFactAgeDays
	cutoff := r.now().AddDate(0, 0, -maxAge)
	for _, fact := range latest {
		if maxAge > 0 && fact.AsOf.Before(cutoff) {
			r.deadLetter(ctx, sum, model.DLQKindExtractStale, company.Ticker, string(fact.Kind),
				map[string]string{"as_of": fact.AsOf.Format("2006-01-02"), "value": fact.Value.String()})
			continue
		}
		r.mergeFact(ctx, fact, sum, log)
	}
}

func (r *Runner) mergeFact(ctx context.Context, fact model.ExtractedFact, sum *CompanySummary, log *zap.Logger) {
	res, err := r.merger.Merge(ctx, fact)
	if err != nil {
		log.Error("pipeline: merge failed",
			zap.String("field", fact.Field()),
			zap.String("date", fact.AsOf.Format("2006-01-02")),
			zap.Error(err))
		sum.SoftFailures++
		return
	}
	if res.Applied {
		sum.FactsMerged++
	}
	if res.Discrepancy != nil {
		sum.Conflicts++
	}
}

// fetch retries transient failures and turns non-2xx results into typed
// errors; throttled responses back off between attempts per the retry
// policy, keeping the client itself retry-free.
func (r *Runner) fetch(ctx context.Context, url string) (*edgar.FetchResult, error) {
	return resilience.Retry(ctx, r.retry, func(ctx context.Context) (*edgar.FetchResult, error) {
		res, err := r.client.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if !res.OK() {
			return nil, res.Err()
		}
		return res, nil
	})
}

// deadLetter routes a failure to the sink. A sink write failure is soft:
// logged and counted, never fatal to the run.
func (r *Runner) deadLetter(ctx context.Context, sum *CompanySummary, kind, ticker, mode string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	written, err := r.store.PushDLQ(ctx, &model.DLQItem{
		Kind:    kind,
		Ticker:  ticker,
		Mode:    mode,
		Payload: data,
	}, r.dedupe[kind])
	if err != nil {
		zap.L().Warn("pipeline: dead-letter write failed",
			zap.String("kind", kind), zap.String("ticker", ticker), zap.Error(err))
		sum.SoftFailures++
		return
	}
	if written {
		sum.DeadLettered++
	}
}

// extractionKinds returns the registered kinds in a stable order.
func (r *Runner) extractionKinds() []extract.Kind {
	kinds := r.registry.Kinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// aggregateCapitalEvents folds same-day capital events into one fact
// carrying the summed amount and the first event's provenance.
func aggregateCapitalEvents(facts []model.ExtractedFact) []model.ExtractedFact {
	total := facts[0]
	for _, f := range facts[1:] {
		total.Value = total.Value.Add(f.Value)
	}
	return []model.ExtractedFact{total}
}
