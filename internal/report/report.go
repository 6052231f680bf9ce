// Package report aggregates an engine report into the reconciliation
// pack: matched, unmatched_bank, unmatched_gl and summary tables
// written as CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/auditflow/reconcile/internal/model"
)

const dateLayout = "2006-01-02"

// Writer renders report packs into a directory.
type Writer struct {
	Dir string
}

// WritePack writes the four reconciliation tables (plus duplicates and
// warnings tables when non-empty) into the writer's directory. The
// original transactions are needed to join detail columns onto match
// rows.
func (w Writer) WritePack(rep *model.ReconciliationReport, bank, gl []model.Transaction) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	bankByID := indexByID(bank)
	glByID := indexByID(gl)

	if err := w.writeTable("matched.csv", matchedTable(rep, bankByID, glByID)); err != nil {
		return err
	}
	if err := w.writeTable("unmatched_bank.csv", unmatchedTable(rep.UnmatchedBank, bankByID, "bank_id", "txn_date", "description")); err != nil {
		return err
	}
	if err := w.writeTable("unmatched_gl.csv", unmatchedTable(rep.UnmatchedGL, glByID, "gl_id", "posting_date", "memo")); err != nil {
		return err
	}
	if err := w.writeTable("summary.csv", summaryTable(rep)); err != nil {
		return err
	}
	if len(rep.Duplicates) > 0 {
		if err := w.writeTable("duplicates.csv", duplicatesTable(rep.Duplicates)); err != nil {
			return err
		}
	}
	if len(rep.Warnings) > 0 {
		if err := w.writeTable("warnings.csv", warningsTable(rep.Warnings)); err != nil {
			return err
		}
	}
	return nil
}

func (w Writer) writeTable(name string, rows [][]string) error {
	path := filepath.Join(w.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cw.Flush()
	return cw.Error()
}

func indexByID(txns []model.Transaction) map[string]model.Transaction {
	m := make(map[string]model.Transaction, len(txns))
	for _, tx := range txns {
		m[tx.ID] = tx
	}
	return m
}

func matchedTable(rep *model.ReconciliationReport, bankByID, glByID map[string]model.Transaction) [][]string {
	rows := [][]string{{
		"bank_ids", "gl_ids", "match_type", "score",
		"amount_delta", "date_delta_days", "rationale",
		"bank_dates", "bank_amounts", "bank_descriptions",
		"gl_dates", "gl_amounts", "gl_memos",
	}}
	for _, res := range rep.Results {
		bankDates, bankAmounts, bankTexts := detailColumns(res.BankIDs, bankByID)
		glDates, glAmounts, glTexts := detailColumns(res.GLIDs, glByID)
		rows = append(rows, []string{
			strings.Join(res.BankIDs, ";"),
			strings.Join(res.GLIDs, ";"),
			string(res.MatchType),
			strconv.FormatFloat(res.Score, 'f', 4, 64),
			res.AmountDelta.StringFixed(2),
			strconv.Itoa(res.DateDelta),
			res.Rationale,
			bankDates, bankAmounts, bankTexts,
			glDates, glAmounts, glTexts,
		})
	}
	return rows
}

func detailColumns(ids []string, byID map[string]model.Transaction) (dates, amounts, texts string) {
	var ds, as, ts []string
	for _, id := range ids {
		tx := byID[id]
		ds = append(ds, tx.Date.Format(dateLayout))
		as = append(as, tx.Amount.StringFixed(2))
		ts = append(ts, tx.Text)
	}
	return strings.Join(ds, ";"), strings.Join(as, ";"), strings.Join(ts, ";")
}

func unmatchedTable(ids []string, byID map[string]model.Transaction, idCol, dateCol, textCol string) [][]string {
	rows := [][]string{{idCol, dateCol, "amount", textCol}}
	for _, id := range ids {
		tx := byID[id]
		rows = append(rows, []string{
			tx.ID,
			tx.Date.Format(dateLayout),
			tx.Amount.StringFixed(2),
			tx.Text,
		})
	}
	return rows
}

func summaryTable(rep *model.ReconciliationReport) [][]string {
	rows := [][]string{{"metric", "count"}}
	for _, mt := range []model.MatchType{model.MatchExact, model.MatchTolerance, model.MatchFuzzy, model.MatchGrouped} {
		rows = append(rows, []string{string(mt), strconv.Itoa(rep.Counts[mt])})
	}
	rows = append(rows,
		[]string{"TOTAL_MATCHED", strconv.Itoa(len(rep.Results))},
		[]string{"unmatched_bank", strconv.Itoa(len(rep.UnmatchedBank))},
		[]string{"unmatched_gl", strconv.Itoa(len(rep.UnmatchedGL))},
		[]string{"duplicates_flagged", strconv.Itoa(len(rep.Duplicates))},
		[]string{"warnings", strconv.Itoa(len(rep.Warnings))},
	)
	return rows
}

func duplicatesTable(flags []model.DuplicateFlag) [][]string {
	rows := [][]string{{"side", "id", "duplicate_of", "similarity"}}
	for _, f := range flags {
		rows = append(rows, []string{
			string(f.Side), f.ID, f.DuplicateOf,
			strconv.FormatFloat(f.Similarity, 'f', 4, 64),
		})
	}
	return rows
}

func warningsTable(warnings []model.Warning) [][]string {
	rows := [][]string{{"kind", "message"}}
	for _, w := range warnings {
		rows = append(rows, []string{string(w.Kind), w.Message})
	}
	return rows
}
