package engine

import (
	"github.com/auditflow/reconcile/internal/model"
)

// detectDuplicates runs the same-side post-pass: pairs with equal
// amount, dates within the duplicate window and near-identical
// normalized text are flagged. The pass covers matched and unmatched
// records alike; a flag is an annotation, never a state transition.
// Pairwise O(n²) on one side is acceptable at ledger-export sizes.
func (e *Engine) detectDuplicates(recs []*record, side model.Side) []model.DuplicateFlag {
	var flags []model.DuplicateFlag
	flagged := make(map[string]bool)
	for j := 1; j < len(recs); j++ {
		if flagged[recs[j].tx.ID] {
			continue
		}
		for i := 0; i < j; i++ {
			a, b := recs[i], recs[j]
			if !a.tx.Amount.Equal(b.tx.Amount) {
				continue
			}
			if a.tx.DateDeltaDays(b.tx.Date) > e.cfg.DuplicateDateWindowDays {
				continue
			}
			sim := e.scorer.Score(a.norm, b.norm)
			if sim < e.cfg.DuplicateSimilarityThreshold {
				continue
			}
			flags = append(flags, model.DuplicateFlag{
				Side:        side,
				ID:          b.tx.ID,
				DuplicateOf: a.tx.ID,
				Similarity:  sim,
			})
			flagged[b.tx.ID] = true
			break
		}
	}
	return flags
}
