package model

import "time"

// ReconciliationReport is the engine output consumed by the result
// aggregator: the final snapshot of one run's matching state. Field
// order is deterministic for identical inputs. No state survives a run.
type ReconciliationReport struct {
	RunID         string            `json:"run_id"`
	StartedAt     time.Time         `json:"started_at"`
	Duration      time.Duration     `json:"duration"`
	BankCount     int               `json:"bank_count"`
	GLCount       int               `json:"gl_count"`
	Results       []MatchResult     `json:"results"`
	UnmatchedBank []string          `json:"unmatched_bank"`
	UnmatchedGL   []string          `json:"unmatched_gl"`
	Duplicates    []DuplicateFlag   `json:"duplicates"`
	Warnings      []Warning         `json:"warnings"`
	Counts        map[MatchType]int `json:"counts"`
}

// MatchedIDs returns the ids claimed by accepted results on the given side.
func (r *ReconciliationReport) MatchedIDs(side Side) []string {
	var ids []string
	for _, res := range r.Results {
		if side == SideBank {
			ids = append(ids, res.BankIDs...)
		} else {
			ids = append(ids, res.GLIDs...)
		}
	}
	return ids
}
