// Package loader ingests bank and GL CSV exports into validated
// transactions. All malformed input is rejected here, before the
// engine runs; the engine never receives an unparsed record.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditflow/reconcile/internal/model"
)

const dateLayout = "2006-01-02"

// InputError reports a malformed record or header.
type InputError struct {
	File   string
	Row    int // 1-based, including the header row; 0 for file-level errors
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("input %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("input %s row %d: %s: %s", e.File, e.Row, e.Field, e.Reason)
}

// format describes one side's CSV shape.
type format struct {
	side    model.Side
	idCol   string
	dateCol string
	textCol string
}

var bankFormat = format{side: model.SideBank, idCol: "bank_id", dateCol: "txn_date", textCol: "description"}
var glFormat = format{side: model.SideGL, idCol: "gl_id", dateCol: "posting_date", textCol: "memo"}

// LoadBank reads a bank feed CSV
// (bank_id,txn_date,amount,description).
func LoadBank(path string) ([]model.Transaction, error) {
	return loadFile(path, bankFormat)
}

// LoadGL reads a general-ledger export CSV
// (gl_id,posting_date,amount,memo).
func LoadGL(path string) ([]model.Transaction, error) {
	return loadFile(path, glFormat)
}

func loadFile(path string, sp format) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{File: path, Reason: err.Error()}
	}
	defer f.Close()
	return Read(f, path, sp.side)
}

// Read parses one side's CSV from r. name is used in error messages.
func Read(r io.Reader, name string, side model.Side) ([]model.Transaction, error) {
	sp := bankFormat
	if side == model.SideGL {
		sp = glFormat
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &InputError{File: name, Reason: "missing header: " + err.Error()}
	}
	cols, err := columnMap(header, name, sp)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	seen := make(map[string]bool)
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &InputError{File: name, Row: row, Field: "", Reason: err.Error()}
		}

		tx, err := parseRow(fields, cols, name, row, sp)
		if err != nil {
			return nil, err
		}
		if seen[tx.ID] {
			return nil, &InputError{File: name, Row: row, Field: sp.idCol, Reason: fmt.Sprintf("duplicate id %q", tx.ID)}
		}
		seen[tx.ID] = true
		txns = append(txns, tx)
	}
	return txns, nil
}

// columnMap resolves required column names to indices. Header names
// are matched case-insensitively after trimming, the way exports from
// different systems tend to disagree on casing.
func columnMap(header []string, name string, sp format) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{sp.idCol, sp.dateCol, "amount", sp.textCol} {
		if _, ok := cols[required]; !ok {
			return nil, &InputError{File: name, Field: required, Reason: "missing required column", Row: 1}
		}
	}
	return cols, nil
}

func parseRow(fields []string, cols map[string]int, name string, row int, sp format) (model.Transaction, error) {
	get := func(col string) (string, error) {
		i := cols[col]
		if i >= len(fields) {
			return "", &InputError{File: name, Row: row, Field: col, Reason: "missing value"}
		}
		return strings.TrimSpace(fields[i]), nil
	}

	id, err := get(sp.idCol)
	if err != nil {
		return model.Transaction{}, err
	}
	if id == "" {
		return model.Transaction{}, &InputError{File: name, Row: row, Field: sp.idCol, Reason: "empty id"}
	}

	rawDate, err := get(sp.dateCol)
	if err != nil {
		return model.Transaction{}, err
	}
	date, err := time.ParseInLocation(dateLayout, rawDate, time.UTC)
	if err != nil {
		return model.Transaction{}, &InputError{File: name, Row: row, Field: sp.dateCol, Reason: fmt.Sprintf("unparseable date %q", rawDate)}
	}

	rawAmount, err := get("amount")
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.Transaction{}, &InputError{File: name, Row: row, Field: "amount", Reason: fmt.Sprintf("unparseable amount %q", rawAmount)}
	}

	text, err := get(sp.textCol)
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		ID:     id,
		Side:   sp.side,
		Date:   date,
		Amount: amount,
		Text:   text,
	}, nil
}
