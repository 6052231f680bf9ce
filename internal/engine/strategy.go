package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/model"
	"github.com/auditflow/reconcile/internal/similarity"
)

// scoredCandidate is a candidate plus the tie-break fields that do not
// belong on the public result shape.
type scoredCandidate struct {
	model.MatchCandidate
	rationale string
	earliest  time.Time
}

// pairStrategy scores one bank/GL pair and either produces a candidate
// or rejects it. Scoring is a pure function of the two records, which
// is what makes per-tier parallel evaluation safe.
type pairStrategy interface {
	name() string
	matchType() model.MatchType
	// amountSlack bounds the candidate universe for this tier.
	amountSlack() decimal.Decimal
	// dateSlack bounds the date distance in days; -1 means unbounded.
	dateSlack() int
	score(b, g *record) (scoredCandidate, bool)
}

func pairCandidate(strategy string, b, g *record, score float64) scoredCandidate {
	earliest := b.tx.Date
	if g.tx.Date.Before(earliest) {
		earliest = g.tx.Date
	}
	return scoredCandidate{
		MatchCandidate: model.MatchCandidate{
			BankIDs:     []string{b.tx.ID},
			GLIDs:       []string{g.tx.ID},
			Strategy:    strategy,
			Score:       score,
			AmountDelta: b.tx.Amount.Sub(g.tx.Amount).Abs(),
			DateDelta:   b.tx.DateDeltaDays(g.tx.Date),
		},
		earliest: earliest,
	}
}

// exactStrategy accepts bit-for-bit equal amounts on the same date.
type exactStrategy struct{}

func (exactStrategy) name() string               { return "exact" }
func (exactStrategy) matchType() model.MatchType { return model.MatchExact }
func (exactStrategy) amountSlack() decimal.Decimal {
	return decimal.Zero
}
func (exactStrategy) dateSlack() int { return 0 }

func (s exactStrategy) score(b, g *record) (scoredCandidate, bool) {
	if !b.tx.Amount.Equal(g.tx.Amount) || !b.tx.Date.Equal(g.tx.Date) {
		return scoredCandidate{}, false
	}
	c := pairCandidate(s.name(), b, g, 1.0)
	c.rationale = fmt.Sprintf("amount %s and date %s identical",
		b.tx.Amount.StringFixed(2), b.tx.Date.Format("2006-01-02"))
	return c, true
}

// toleranceStrategy accepts amount and date deltas within the
// configured bounds; boundaries are inclusive.
type toleranceStrategy struct {
	cfg config.Engine
}

func (toleranceStrategy) name() string               { return "tolerance" }
func (toleranceStrategy) matchType() model.MatchType { return model.MatchTolerance }
func (s toleranceStrategy) amountSlack() decimal.Decimal {
	return s.cfg.AmountTolerance
}
func (s toleranceStrategy) dateSlack() int { return s.cfg.DateWindowDays }

func (s toleranceStrategy) score(b, g *record) (scoredCandidate, bool) {
	amountDelta := b.tx.Amount.Sub(g.tx.Amount).Abs()
	if amountDelta.GreaterThan(s.cfg.AmountTolerance) {
		return scoredCandidate{}, false
	}
	dateDelta := b.tx.DateDeltaDays(g.tx.Date)
	if dateDelta > s.cfg.DateWindowDays {
		return scoredCandidate{}, false
	}

	amountRatio := 0.0
	if s.cfg.AmountTolerance.IsPositive() {
		amountRatio = amountDelta.Div(s.cfg.AmountTolerance).InexactFloat64()
	}
	dateRatio := 0.0
	if s.cfg.DateWindowDays > 0 {
		dateRatio = float64(dateDelta) / float64(s.cfg.DateWindowDays)
	}

	c := pairCandidate(s.name(), b, g, 1.0-(amountRatio+dateRatio)/2.0)
	c.rationale = fmt.Sprintf("amount delta %s within %s, date delta %dd within %dd",
		amountDelta.StringFixed(2), s.cfg.AmountTolerance.StringFixed(2),
		dateDelta, s.cfg.DateWindowDays)
	return c, true
}

// fuzzyStrategy accepts amount deltas within the looser secondary
// tolerance when the normalized descriptions are similar enough. No
// date bound applies; the similarity threshold carries the risk.
type fuzzyStrategy struct {
	cfg    config.Engine
	scorer similarity.Scorer
}

func (fuzzyStrategy) name() string               { return "fuzzy" }
func (fuzzyStrategy) matchType() model.MatchType { return model.MatchFuzzy }
func (s fuzzyStrategy) amountSlack() decimal.Decimal {
	return s.cfg.FuzzyAmountTolerance
}
func (fuzzyStrategy) dateSlack() int { return -1 }

func (s fuzzyStrategy) score(b, g *record) (scoredCandidate, bool) {
	amountDelta := b.tx.Amount.Sub(g.tx.Amount).Abs()
	if amountDelta.GreaterThan(s.cfg.FuzzyAmountTolerance) {
		return scoredCandidate{}, false
	}
	sim := s.scorer.Score(b.norm, g.norm)
	if sim < s.cfg.SimilarityThreshold {
		return scoredCandidate{}, false
	}

	c := pairCandidate(s.name(), b, g, sim)
	c.rationale = fmt.Sprintf("similarity %.2f >= %.2f, amount delta %s within %s",
		sim, s.cfg.SimilarityThreshold,
		amountDelta.StringFixed(2), s.cfg.FuzzyAmountTolerance.StringFixed(2))
	return c, true
}

// lessPair orders pair candidates deterministically: best score first,
// then smaller amount delta, smaller date delta, and finally the
// combined id key.
func lessPair(a, b *scoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if cmp := a.AmountDelta.Cmp(b.AmountDelta); cmp != 0 {
		return cmp < 0
	}
	if a.DateDelta != b.DateDelta {
		return a.DateDelta < b.DateDelta
	}
	return a.IDKey() < b.IDKey()
}

// lessGrouped orders grouped candidates: best score first, then smaller
// group, earlier date range, and finally the combined id key.
func lessGrouped(a, b *scoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.GroupSize() != b.GroupSize() {
		return a.GroupSize() < b.GroupSize()
	}
	if !a.earliest.Equal(b.earliest) {
		return a.earliest.Before(b.earliest)
	}
	return a.IDKey() < b.IDKey()
}
