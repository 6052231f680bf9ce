package engine

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/auditflow/reconcile/internal/model"
)

// record wraps an input transaction with run-scoped derived fields.
// The underlying transaction is never mutated.
type record struct {
	tx   model.Transaction
	norm string
	seq  int // position in the input slice, used for deterministic ordering
}

// amountNode is one price level in the amount index: every unclaimed
// record on a side sharing the same amount, in input order.
type amountNode struct {
	amount decimal.Decimal
	recs   []*record
}

// amountIndex is a B-tree over records keyed by amount. It is rebuilt
// from the unclaimed pool before each strategy tier, so the index never
// has to support removal.
type amountIndex struct {
	tree *btree.BTreeG[*amountNode]
}

func newAmountIndex(recs []*record) *amountIndex {
	ix := &amountIndex{
		tree: btree.NewBTreeG(func(a, b *amountNode) bool {
			return a.amount.LessThan(b.amount)
		}),
	}
	for _, r := range recs {
		node, ok := ix.tree.Get(&amountNode{amount: r.tx.Amount})
		if !ok {
			node = &amountNode{amount: r.tx.Amount}
			ix.tree.Set(node)
		}
		node.recs = append(node.recs, r)
	}
	return ix
}

// withinAmount returns all records whose amount lies in
// [center-slack, center+slack], ordered by amount then input order.
// A zero slack returns only exact amount matches.
func (ix *amountIndex) withinAmount(center, slack decimal.Decimal) []*record {
	lo := center.Sub(slack)
	hi := center.Add(slack)
	var out []*record
	ix.tree.Ascend(&amountNode{amount: lo}, func(node *amountNode) bool {
		if node.amount.GreaterThan(hi) {
			return false
		}
		out = append(out, node.recs...)
		return true
	})
	return out
}

// pair is a one-to-one candidate prior to strategy scoring.
type pair struct {
	bank *record
	gl   *record
}

// generatePairs emits the restricted pair universe for one tier: every
// unclaimed bank record against the unclaimed GL records within the
// tier's amount slack (and date slack when bounded). The GL side is
// indexed; the bank side is walked in input order so output order is
// deterministic.
func generatePairs(bank, gl []*record, amountSlack decimal.Decimal, dateSlack int) []pair {
	ix := newAmountIndex(gl)
	var pairs []pair
	for _, b := range bank {
		for _, g := range ix.withinAmount(b.tx.Amount, amountSlack) {
			if dateSlack >= 0 && g.tx.DateDeltaDays(b.tx.Date) > dateSlack {
				continue
			}
			pairs = append(pairs, pair{bank: b, gl: g})
		}
	}
	return pairs
}
