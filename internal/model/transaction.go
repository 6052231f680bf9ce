// Package model defines the domain types shared by the reconciliation
// engine and its collaborators (loader, report pack, API server).
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which ledger a transaction came from.
type Side string

const (
	SideBank Side = "bank"
	SideGL   Side = "gl"
)

// MatchType classifies an accepted match.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchTolerance MatchType = "tolerance"
	MatchFuzzy     MatchType = "fuzzy"
	MatchGrouped   MatchType = "grouped"
)

// Transaction is one ledger entry. Instances are immutable after
// ingestion; the engine never mutates its inputs.
type Transaction struct {
	ID             string          `json:"id"`
	Side           Side            `json:"side"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Text           string          `json:"text"`
	NormalizedText string          `json:"normalized_text,omitempty"`
}

// DateDeltaDays returns the absolute distance in calendar days between
// the transaction date and t.
func (tx Transaction) DateDeltaDays(t time.Time) int {
	d := tx.Date.Sub(t).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// MatchCandidate is a proposed pairing or grouping of transactions.
// One side may hold multiple ids only for grouped candidates.
type MatchCandidate struct {
	BankIDs     []string        `json:"bank_ids"`
	GLIDs       []string        `json:"gl_ids"`
	Strategy    string          `json:"strategy"`
	Score       float64         `json:"score"`
	AmountDelta decimal.Decimal `json:"amount_delta"`
	DateDelta   int             `json:"date_delta_days"`
}

// IDKey returns the deterministic combined id key used as the final
// tie-break criterion.
func (c MatchCandidate) IDKey() string {
	return strings.Join(c.BankIDs, ",") + "|" + strings.Join(c.GLIDs, ",")
}

// GroupSize is the number of transactions referenced by the candidate.
func (c MatchCandidate) GroupSize() int {
	return len(c.BankIDs) + len(c.GLIDs)
}

// MatchResult is a finalized, accepted candidate.
type MatchResult struct {
	MatchCandidate
	MatchType MatchType `json:"match_type"`
	Rationale string    `json:"rationale"`
}

// DuplicateFlag marks a record as a suspected duplicate of an earlier
// record on the same side. It is an annotation, not a state transition.
type DuplicateFlag struct {
	Side        Side    `json:"side"`
	ID          string  `json:"id"`
	DuplicateOf string  `json:"duplicate_of"`
	Similarity  float64 `json:"similarity"`
}

// WarningKind classifies non-fatal run conditions.
type WarningKind string

const (
	WarningAmbiguity WarningKind = "ambiguity"
	WarningCapacity  WarningKind = "capacity"
)

// Warning is a non-fatal condition recorded on the run summary.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}
