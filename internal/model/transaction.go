package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a parsed, validated CSV row that has not been stored yet.
type Candidate struct {
	Reference   string
	Timestamp   time.Time       // always UTC
	Amount      decimal.Decimal // negative = expense, positive = income
	Currency    string          // upper-case, 3 characters
	Description string          // "" = no description
}

// HasDescription reports whether the row carried a non-empty description.
func (c Candidate) HasDescription() bool {
	return c.Description != ""
}

// Transaction is a stored Candidate. Reference is unique across the store.
type Transaction struct {
	Candidate
	ID        string
	BatchID   string
	CreatedAt time.Time
}

// RowOutcome is the result of parsing one CSV row: either a Candidate or the
// row's error messages, never both.
type RowOutcome struct {
	Candidate *Candidate
	Errors    []string
}

// OK reports whether the row produced a Candidate.
func (o RowOutcome) OK() bool {
	return o.Candidate != nil && len(o.Errors) == 0
}

// Row is a display-ready transaction.
type Row struct {
	Reference   string `json:"reference"`
	Timestamp   string `json:"timestamp"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Highlight   bool   `json:"highlight"`
}
