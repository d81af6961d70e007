package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banktx/internal/model"
)

const (
	minColumns     = 4
	currencyLength = 3

	// Bounds on accepted amounts. Exponents past these make formatting and
	// storage materialize enormous integers.
	maxAmountExponent = 18
	maxAmountDigits   = 38
)

// Columns holds the position of each known column within a row.
// A negative position means the column is absent.
type Columns struct {
	Reference   int
	Timestamp   int
	Amount      int
	Currency    int
	Description int
}

// DefaultColumns is the canonical reference,timestamp,amount,currency,description order.
func DefaultColumns() Columns {
	return Columns{Reference: 0, Timestamp: 1, Amount: 2, Currency: 3, Description: 4}
}

func (c Columns) value(fields []string, pos int) string {
	if pos < 0 || pos >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[pos])
}

// ParseRow validates one data row. line is the 1-based position of the row in
// the payload and prefixes every error message. All field problems of the row
// are reported together.
func ParseRow(line int, fields []string, cols Columns) model.RowOutcome {
	if len(fields) < minColumns {
		return model.RowOutcome{Errors: []string{
			lineError(line, fmt.Sprintf("Expected at least %d columns but found %d", minColumns, len(fields))),
		}}
	}

	var errs []string
	fail := func(msg string) {
		errs = append(errs, lineError(line, msg))
	}

	ref := cols.value(fields, cols.Reference)
	if ref == "" {
		fail("Missing reference")
	}

	ts, msg := parseTimestamp(cols.value(fields, cols.Timestamp))
	if msg != "" {
		fail(msg)
	}

	amount, msg := parseAmount(cols.value(fields, cols.Amount))
	if msg != "" {
		fail(msg)
	}

	currency, msg := parseCurrency(cols.value(fields, cols.Currency))
	if msg != "" {
		fail(msg)
	}

	if len(errs) > 0 {
		return model.RowOutcome{Errors: errs}
	}

	return model.RowOutcome{Candidate: &model.Candidate{
		Reference:   ref,
		Timestamp:   ts,
		Amount:      amount,
		Currency:    currency,
		Description: cols.value(fields, cols.Description),
	}}
}

func parseTimestamp(raw string) (time.Time, string) {
	if raw == "" {
		return time.Time{}, "Missing timestamp"
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Sprintf("Invalid timestamp '%s'", raw)
	}
	return ts.UTC(), ""
}

func parseAmount(raw string) (decimal.Decimal, string) {
	if raw == "" {
		return decimal.Decimal{}, "Missing amount"
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amountInRange(amount) {
		return decimal.Decimal{}, fmt.Sprintf("Invalid amount '%s'", raw)
	}
	return amount, ""
}

func amountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxAmountExponent || exp < -maxAmountExponent {
		return false
	}
	return d.NumDigits() <= maxAmountDigits
}

func parseCurrency(raw string) (string, string) {
	if raw == "" {
		return "", "Missing currency"
	}
	code := strings.ToUpper(raw)
	if utf8.RuneCountInString(code) != currencyLength {
		return "", "Currency must be a 3-letter ISO code"
	}
	return code, ""
}

func lineError(line int, msg string) string {
	return fmt.Sprintf("Line %d: %s", line, msg)
}
