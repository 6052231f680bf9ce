package server

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auditflow/reconcile/internal/config"
	"github.com/auditflow/reconcile/internal/model"
)

const dateLayout = "2006-01-02"

type reconcileRequest struct {
	Bank    []bankRecord `json:"bank" binding:"required"`
	GL      []glRecord   `json:"gl" binding:"required"`
	Options *options     `json:"options"`
}

type bankRecord struct {
	BankID      string `json:"bank_id" binding:"required"`
	TxnDate     string `json:"txn_date" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type glRecord struct {
	GLID        string `json:"gl_id" binding:"required"`
	PostingDate string `json:"posting_date" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Memo        string `json:"memo"`
}

// options carries per-request overrides of the base engine config.
// Pointer fields distinguish "absent" from zero values.
type options struct {
	AmountTolerance              *string  `json:"amount_tolerance"`
	FuzzyAmountTolerance         *string  `json:"fuzzy_amount_tolerance"`
	DateWindowDays               *int     `json:"date_window_days"`
	SimilarityThreshold          *float64 `json:"similarity_threshold"`
	EnableGroupedMatching        *bool    `json:"enable_grouped_matching"`
	MaxGroupSize                 *int     `json:"max_group_size"`
	DuplicateDateWindowDays      *int     `json:"duplicate_date_window_days"`
	DuplicateSimilarityThreshold *float64 `json:"duplicate_similarity_threshold"`
}

func (o *options) apply(base config.Engine) (config.Engine, error) {
	if o == nil {
		return base, nil
	}
	cfg := base
	if o.AmountTolerance != nil {
		tol, err := decimal.NewFromString(*o.AmountTolerance)
		if err != nil {
			return config.Engine{}, fmt.Errorf("amount_tolerance: %w", err)
		}
		cfg.AmountTolerance = tol
	}
	if o.FuzzyAmountTolerance != nil {
		tol, err := decimal.NewFromString(*o.FuzzyAmountTolerance)
		if err != nil {
			return config.Engine{}, fmt.Errorf("fuzzy_amount_tolerance: %w", err)
		}
		cfg.FuzzyAmountTolerance = tol
	}
	if o.DateWindowDays != nil {
		cfg.DateWindowDays = *o.DateWindowDays
	}
	if o.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.EnableGroupedMatching != nil {
		cfg.EnableGroupedMatching = *o.EnableGroupedMatching
	}
	if o.MaxGroupSize != nil {
		cfg.MaxGroupSize = *o.MaxGroupSize
	}
	if o.DuplicateDateWindowDays != nil {
		cfg.DuplicateDateWindowDays = *o.DuplicateDateWindowDays
	}
	if o.DuplicateSimilarityThreshold != nil {
		cfg.DuplicateSimilarityThreshold = *o.DuplicateSimilarityThreshold
	}
	return cfg, nil
}

func (r *reconcileRequest) bankTransactions() ([]model.Transaction, error) {
	txns := make([]model.Transaction, len(r.Bank))
	for i, rec := range r.Bank {
		tx, err := parseRecord(rec.BankID, rec.TxnDate, rec.Amount, rec.Description, model.SideBank)
		if err != nil {
			return nil, fmt.Errorf("bank[%d]: %w", i, err)
		}
		txns[i] = tx
	}
	return txns, nil
}

func (r *reconcileRequest) glTransactions() ([]model.Transaction, error) {
	txns := make([]model.Transaction, len(r.GL))
	for i, rec := range r.GL {
		tx, err := parseRecord(rec.GLID, rec.PostingDate, rec.Amount, rec.Memo, model.SideGL)
		if err != nil {
			return nil, fmt.Errorf("gl[%d]: %w", i, err)
		}
		txns[i] = tx
	}
	return txns, nil
}

func parseRecord(id, rawDate, rawAmount, text string, side model.Side) (model.Transaction, error) {
	date, err := time.ParseInLocation(dateLayout, rawDate, time.UTC)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("unparseable date %q", rawDate)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("unparseable amount %q", rawAmount)
	}
	return model.Transaction{
		ID:     id,
		Side:   side,
		Date:   date,
		Amount: amount,
		Text:   text,
	}, nil
}
