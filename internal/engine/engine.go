// Package engine implements the reconciliation matching core: the
// priority-ordered strategy pipeline, exclusivity and tie-break rules,
// the bounded many-to-one grouping search, and duplicate detection.
//
// A run is a one-shot batch computation. Scoring within a tier is a
// pure function of immutable records and is evaluated in parallel;
// claims are applied by a single writer, so results are deterministic
// for identical inputs and configuration.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/model"
	"github.com/auditflow/reconcile/internal/normalize"
	"github.com/auditflow/reconcile/internal/similarity"
)

// Engine reconciles a bank ledger against a GL ledger.
type Engine struct {
	cfg    config.Engine
	scorer similarity.Scorer
	norm   *normalize.Normalizer
	logger *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScorer overrides the default similarity scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New validates cfg and constructs an Engine. Configuration errors are
// returned here and never surface mid-run.
func New(cfg config.Engine, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		scorer: similarity.Default(),
		norm:   normalize.New(cfg.StopTokens),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// runState is the mutable bookkeeping of one run. Only the claim loop
// writes to it.
type runState struct {
	bank        []*record
	gl          []*record
	claimedBank map[string]bool
	claimedGL   map[string]bool
	results     []model.MatchResult
	warnings    []model.Warning
}

func (st *runState) unclaimed(side model.Side) []*record {
	recs := st.bank
	claimed := st.claimedBank
	if side == model.SideGL {
		recs = st.gl
		claimed = st.claimedGL
	}
	out := make([]*record, 0, len(recs))
	for _, r := range recs {
		if !claimed[r.tx.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (st *runState) anyClaimed(c *scoredCandidate) bool {
	for _, id := range c.BankIDs {
		if st.claimedBank[id] {
			return true
		}
	}
	for _, id := range c.GLIDs {
		if st.claimedGL[id] {
			return true
		}
	}
	return false
}

func (st *runState) accept(c *scoredCandidate, mt model.MatchType, rationale string) {
	for _, id := range c.BankIDs {
		st.claimedBank[id] = true
	}
	for _, id := range c.GLIDs {
		st.claimedGL[id] = true
	}
	st.results = append(st.results, model.MatchResult{
		MatchCandidate: c.MatchCandidate,
		MatchType:      mt,
		Rationale:      fmt.Sprintf("%s: %s", c.Strategy, rationale),
	})
}

// Reconcile runs the full pipeline over pre-validated inputs and
// returns the report consumed by the result aggregator. It performs no
// file I/O and keeps no state across calls.
func (e *Engine) Reconcile(ctx context.Context, bank, gl []model.Transaction) (*model.ReconciliationReport, error) {
	started := time.Now()

	bankRecs, err := e.intake(bank, model.SideBank)
	if err != nil {
		return nil, err
	}
	glRecs, err := e.intake(gl, model.SideGL)
	if err != nil {
		return nil, err
	}

	st := &runState{
		bank:        bankRecs,
		gl:          glRecs,
		claimedBank: make(map[string]bool, len(bankRecs)),
		claimedGL:   make(map[string]bool, len(glRecs)),
	}

	strategies := []pairStrategy{
		exactStrategy{},
		toleranceStrategy{cfg: e.cfg},
		fuzzyStrategy{cfg: e.cfg, scorer: e.scorer},
	}
	for _, strat := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unclaimedBank := st.unclaimed(model.SideBank)
		unclaimedGL := st.unclaimed(model.SideGL)
		pairs := generatePairs(unclaimedBank, unclaimedGL, strat.amountSlack(), strat.dateSlack())
		cands := e.scorePairs(pairs, strat)
		sort.Slice(cands, func(i, j int) bool { return lessPair(&cands[i], &cands[j]) })
		accepted := e.claim(st, cands, strat.matchType(), equalPairKey)
		e.logger.Debug("strategy tier resolved",
			zap.String("strategy", strat.name()),
			zap.Int("pairs", len(pairs)),
			zap.Int("candidates", len(cands)),
			zap.Int("accepted", accepted),
		)
	}

	if e.cfg.EnableGroupedMatching && e.cfg.MaxGroupSize >= 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.runGrouped(st, model.SideBank)
		e.runGrouped(st, model.SideGL)
	}

	duplicates := append(
		e.detectDuplicates(st.bank, model.SideBank),
		e.detectDuplicates(st.gl, model.SideGL)...,
	)

	report := e.buildReport(st, duplicates, started)
	e.observe(report)
	e.logger.Info("reconciliation complete",
		zap.String("run_id", report.RunID),
		zap.Int("bank_records", report.BankCount),
		zap.Int("gl_records", report.GLCount),
		zap.Int("matched", len(report.Results)),
		zap.Int("unmatched_bank", len(report.UnmatchedBank)),
		zap.Int("unmatched_gl", len(report.UnmatchedGL)),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// intake normalizes descriptions and truncates dates onto run-scoped
// record wrappers, leaving the caller's transactions untouched. The
// engine assumes a pre-validated record set; duplicate ids within a
// side are the one malformation cheap enough to re-check here.
func (e *Engine) intake(txns []model.Transaction, side model.Side) ([]*record, error) {
	seen := make(map[string]bool, len(txns))
	recs := make([]*record, len(txns))
	for i, tx := range txns {
		if tx.ID == "" {
			return nil, fmt.Errorf("%s: transaction at index %d has no id", side, i)
		}
		if seen[tx.ID] {
			return nil, fmt.Errorf("%s: duplicate transaction id %q", side, tx.ID)
		}
		seen[tx.ID] = true
		tx.Side = side
		tx.Date = dayOf(tx.Date)
		tx.NormalizedText = e.norm.Normalize(tx.Text)
		recs[i] = &record{tx: tx, norm: tx.NormalizedText, seq: i}
	}
	return recs, nil
}

// scorePairs fans pure pair scoring out over worker goroutines. Each
// worker writes only to its own index stripe, so the collected output
// preserves input order regardless of scheduling.
func (e *Engine) scorePairs(pairs []pair, strat pairStrategy) []scoredCandidate {
	if len(pairs) == 0 {
		return nil
	}
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	scored := make([]scoredCandidate, len(pairs))
	ok := make([]bool, len(pairs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(pairs); i += workers {
				scored[i], ok[i] = strat.score(pairs[i].bank, pairs[i].gl)
			}
		}(w)
	}
	wg.Wait()

	out := make([]scoredCandidate, 0, len(pairs))
	for i := range scored {
		if ok[i] {
			out = append(out, scored[i])
		}
	}
	return out
}

// claim greedily accepts sorted candidates, skipping any that reference
// an already-claimed id. When the tie-break chain is exhausted and
// equally ranked rivals contest the same records, the accept is still
// deterministic (id order) but is annotated and recorded as an
// ambiguity warning for auditability.
func (e *Engine) claim(st *runState, cands []scoredCandidate, mt model.MatchType, equalKey func(a, b *scoredCandidate) bool) int {
	accepted := 0
	for i := range cands {
		c := &cands[i]
		if st.anyClaimed(c) {
			continue
		}
		ties := 0
		for j := i + 1; j < len(cands) && equalKey(c, &cands[j]); j++ {
			if !st.anyClaimed(&cands[j]) && overlaps(c, &cands[j]) {
				ties++
			}
		}
		rationale := c.rationale
		if ties > 0 {
			rationale += fmt.Sprintf("; tie with %d equally ranked candidate(s) broken by id order", ties)
			st.warnings = append(st.warnings, model.Warning{
				Kind:    model.WarningAmbiguity,
				Message: fmt.Sprintf("%s: %d equally ranked candidate(s) for %s resolved by id order", c.Strategy, ties, c.IDKey()),
			})
		}
		st.accept(c, mt, rationale)
		accepted++
	}
	return accepted
}

// runGrouped searches for groups on manySide summing to a single record
// on the other side, then claims them under grouped tie-break rules.
func (e *Engine) runGrouped(st *runState, manySide model.Side) {
	singleSide := model.SideGL
	if manySide == model.SideGL {
		singleSide = model.SideBank
	}
	gs := &groupSearch{cfg: e.cfg, budget: e.cfg.GroupSearchBudget}
	cands, exhausted := gs.run(st.unclaimed(singleSide), st.unclaimed(manySide), manySide)
	if exhausted {
		st.warnings = append(st.warnings, model.Warning{
			Kind:    model.WarningCapacity,
			Message: fmt.Sprintf("grouped matching budget exhausted on %s side; remaining records left unmatched", manySide),
		})
	}
	sort.Slice(cands, func(i, j int) bool { return lessGrouped(&cands[i], &cands[j]) })
	accepted := e.claim(st, cands, model.MatchGrouped, equalGroupedKey)
	e.logger.Debug("grouped tier resolved",
		zap.String("many_side", string(manySide)),
		zap.Int("candidates", len(cands)),
		zap.Int("accepted", accepted),
		zap.Bool("budget_exhausted", exhausted),
	)
}

func (e *Engine) buildReport(st *runState, duplicates []model.DuplicateFlag, started time.Time) *model.ReconciliationReport {
	report := &model.ReconciliationReport{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		Duration:   time.Since(started),
		BankCount:  len(st.bank),
		GLCount:    len(st.gl),
		Results:    st.results,
		Duplicates: duplicates,
		Warnings:   st.warnings,
		Counts: map[model.MatchType]int{
			model.MatchExact:     0,
			model.MatchTolerance: 0,
			model.MatchFuzzy:     0,
			model.MatchGrouped:   0,
		},
	}
	for _, r := range st.bank {
		if !st.claimedBank[r.tx.ID] {
			report.UnmatchedBank = append(report.UnmatchedBank, r.tx.ID)
		}
	}
	for _, r := range st.gl {
		if !st.claimedGL[r.tx.ID] {
			report.UnmatchedGL = append(report.UnmatchedGL, r.tx.ID)
		}
	}
	for _, res := range st.results {
		report.Counts[res.MatchType]++
	}
	return report
}

func (e *Engine) observe(report *model.ReconciliationReport) {
	for _, res := range report.Results {
		RecordsMatched.WithLabelValues(string(model.SideBank), string(res.MatchType)).Add(float64(len(res.BankIDs)))
		RecordsMatched.WithLabelValues(string(model.SideGL), string(res.MatchType)).Add(float64(len(res.GLIDs)))
	}
	RecordsUnmatched.WithLabelValues(string(model.SideBank)).Add(float64(len(report.UnmatchedBank)))
	RecordsUnmatched.WithLabelValues(string(model.SideGL)).Add(float64(len(report.UnmatchedGL)))
	for _, d := range report.Duplicates {
		DuplicatesFlagged.WithLabelValues(string(d.Side)).Inc()
	}
	for _, w := range report.Warnings {
		RunWarnings.WithLabelValues(string(w.Kind)).Inc()
	}
	RunDuration.Observe(report.Duration.Seconds())
}

func equalPairKey(a, b *scoredCandidate) bool {
	return a.Score == b.Score &&
		a.AmountDelta.Equal(b.AmountDelta) &&
		a.DateDelta == b.DateDelta
}

func equalGroupedKey(a, b *scoredCandidate) bool {
	return a.Score == b.Score &&
		a.GroupSize() == b.GroupSize() &&
		a.earliest.Equal(b.earliest)
}

func overlaps(a, b *scoredCandidate) bool {
	for _, x := range a.BankIDs {
		for _, y := range b.BankIDs {
			if x == y {
				return true
			}
		}
	}
	for _, x := range a.GLIDs {
		for _, y := range b.GLIDs {
			if x == y {
				return true
			}
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
