package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/model"
)

// groupSearch enumerates bounded many-to-one candidates: subsets of at
// most MaxGroupSize records on the many side whose amounts sum to
// within AmountTolerance of a single counterpart, with every member
// inside the date window of the counterpart.
//
// This is deliberately not a full subset-sum: subset size is capped and
// a shared iteration budget bounds the enumeration, so worst-case cost
// stays polynomial for fixed K. When the budget runs out the search
// reports exhaustion and the caller skips grouping for that side.
type groupSearch struct {
	cfg    config.Engine
	budget int
}

// run produces grouped candidates for every single-side record against
// the many-side pool. manySide names the side the group members come
// from. Returns the candidates and whether the budget was exhausted.
func (gs *groupSearch) run(singles, many []*record, manySide model.Side) ([]scoredCandidate, bool) {
	var out []scoredCandidate
	for _, single := range singles {
		members := make([]*record, 0, len(many))
		for _, m := range many {
			if m.tx.DateDeltaDays(single.tx.Date) <= gs.cfg.DateWindowDays {
				members = append(members, m)
			}
		}
		if len(members) < 2 {
			continue
		}

		subset := make([]*record, 0, gs.cfg.MaxGroupSize)
		exhausted := !gs.extend(single, members, 0, decimal.Zero, subset, manySide, &out)
		if exhausted {
			return out, true
		}
	}
	return out, false
}

// extend grows the current subset with members[from:]. Returns false
// when the iteration budget is exhausted.
func (gs *groupSearch) extend(single *record, members []*record, from int, sum decimal.Decimal, subset []*record, manySide model.Side, out *[]scoredCandidate) bool {
	for i := from; i < len(members); i++ {
		if gs.budget <= 0 {
			return false
		}
		gs.budget--

		subset = append(subset, members[i])
		total := sum.Add(members[i].tx.Amount)

		if len(subset) >= 2 {
			delta := total.Sub(single.tx.Amount).Abs()
			if !delta.GreaterThan(gs.cfg.AmountTolerance) {
				*out = append(*out, gs.candidate(single, subset, delta, manySide))
			}
		}
		if len(subset) < gs.cfg.MaxGroupSize {
			if !gs.extend(single, members, i+1, total, subset, manySide, out) {
				return false
			}
		}
		subset = subset[:len(subset)-1]
	}
	return true
}

func (gs *groupSearch) candidate(single *record, subset []*record, delta decimal.Decimal, manySide model.Side) scoredCandidate {
	memberIDs := make([]string, len(subset))
	sum := decimal.Zero
	maxDateDelta := 0
	earliest := subset[0].tx.Date
	for i, m := range subset {
		memberIDs[i] = m.tx.ID
		sum = sum.Add(m.tx.Amount)
		if d := m.tx.DateDeltaDays(single.tx.Date); d > maxDateDelta {
			maxDateDelta = d
		}
		if m.tx.Date.Before(earliest) {
			earliest = m.tx.Date
		}
	}

	score := 1.0
	if gs.cfg.AmountTolerance.IsPositive() {
		score = 1.0 - delta.Div(gs.cfg.AmountTolerance).InexactFloat64()
	}

	c := scoredCandidate{
		MatchCandidate: model.MatchCandidate{
			Strategy:    "grouped",
			Score:       score,
			AmountDelta: delta,
			DateDelta:   maxDateDelta,
		},
		earliest: earliest,
		rationale: fmt.Sprintf("%d records sum %s within %s of counterpart %s",
			len(subset), sum.StringFixed(2),
			gs.cfg.AmountTolerance.StringFixed(2), single.tx.Amount.StringFixed(2)),
	}
	if manySide == model.SideBank {
		c.BankIDs = memberIDs
		c.GLIDs = []string{single.tx.ID}
	} else {
		c.BankIDs = []string{single.tx.ID}
		c.GLIDs = memberIDs
	}
	return c
}
