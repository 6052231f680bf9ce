package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditflow/reconcile/internal/model"
)

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWritePack(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	bank := []model.Transaction{
		{ID: "B1", Side: model.SideBank, Date: date, Amount: decimal.RequireFromString("100.00"), Text: "ACH Payment Acme"},
		{ID: "B2", Side: model.SideBank, Date: date, Amount: decimal.RequireFromString("55.00"), Text: "stray"},
	}
	gl := []model.Transaction{
		{ID: "G1", Side: model.SideGL, Date: date, Amount: decimal.RequireFromString("100.00"), Text: "Acme ACH"},
	}
	rep := &model.ReconciliationReport{
		RunID: "run-1",
		Results: []model.MatchResult{
			{
				MatchCandidate: model.MatchCandidate{
					BankIDs:     []string{"B1"},
					GLIDs:       []string{"G1"},
					Strategy:    "exact",
					Score:       1.0,
					AmountDelta: decimal.Zero,
					DateDelta:   0,
				},
				MatchType: model.MatchExact,
				Rationale: "exact: amount 100.00 and date 2024-01-05 identical",
			},
		},
		UnmatchedBank: []string{"B2"},
		Duplicates: []model.DuplicateFlag{
			{Side: model.SideBank, ID: "B2", DuplicateOf: "B1", Similarity: 0.95},
		},
		Warnings: []model.Warning{
			{Kind: model.WarningAmbiguity, Message: "tie resolved by id order"},
		},
		Counts: map[model.MatchType]int{model.MatchExact: 1},
	}

	dir := t.TempDir()
	require.NoError(t, Writer{Dir: dir}.WritePack(rep, bank, gl))

	matched := readTable(t, filepath.Join(dir, "matched.csv"))
	require.Len(t, matched, 2)
	assert.Equal(t, "bank_ids", matched[0][0])
	assert.Equal(t, "B1", matched[1][0])
	assert.Equal(t, "G1", matched[1][1])
	assert.Equal(t, "exact", matched[1][2])
	assert.Equal(t, "ACH Payment Acme", matched[1][9])

	unmatchedBank := readTable(t, filepath.Join(dir, "unmatched_bank.csv"))
	require.Len(t, unmatchedBank, 2)
	assert.Equal(t, []string{"B2", "2024-01-05", "55.00", "stray"}, unmatchedBank[1])

	unmatchedGL := readTable(t, filepath.Join(dir, "unmatched_gl.csv"))
	assert.Len(t, unmatchedGL, 1, "header only when nothing is unmatched")

	summary := readTable(t, filepath.Join(dir, "summary.csv"))
	rows := make(map[string]string)
	for _, row := range summary[1:] {
		rows[row[0]] = row[1]
	}
	assert.Equal(t, "1", rows["exact"])
	assert.Equal(t, "0", rows["tolerance"])
	assert.Equal(t, "1", rows["TOTAL_MATCHED"])
	assert.Equal(t, "1", rows["unmatched_bank"])
	assert.Equal(t, "1", rows["duplicates_flagged"])

	duplicates := readTable(t, filepath.Join(dir, "duplicates.csv"))
	require.Len(t, duplicates, 2)
	assert.Equal(t, "B2", duplicates[1][1])

	warnings := readTable(t, filepath.Join(dir, "warnings.csv"))
	require.Len(t, warnings, 2)
	assert.Equal(t, "ambiguity", warnings[1][0])
}

func TestWritePackOmitsEmptyAnnexTables(t *testing.T) {
	rep := &model.ReconciliationReport{Counts: map[model.MatchType]int{}}
	dir := t.TempDir()
	require.NoError(t, Writer{Dir: dir}.WritePack(rep, nil, nil))

	_, err := os.Stat(filepath.Join(dir, "duplicates.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "warnings.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "summary.csv"))
	assert.NoError(t, err)
}
