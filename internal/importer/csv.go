package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cleared-dev/banktx/internal/model"
)

// Header is the canonical CSV header for transaction payloads.
const Header = "reference,timestamp,amount,currency,description"

const (
	colReference   = "reference"
	colTimestamp   = "timestamp"
	colAmount      = "amount"
	colCurrency    = "currency"
	colDescription = "description"
)

var requiredHeaders = []string{colReference, colTimestamp, colAmount, colCurrency, colDescription}

// ParseBatch reads a whole transaction CSV payload. The first non-blank row
// must be a header naming every required column; columns are addressed by
// name, so their order is free. Field errors are collected across all rows
// and returned together as one *ValidationError.
func ParseBatch(r io.Reader) ([]model.Candidate, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := nextRecord(cr)
	if errors.Is(err, io.EOF) {
		return nil, Invalid("CSV payload is empty")
	}
	if err != nil {
		return nil, err
	}

	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	var errs []string
	var candidates []model.Candidate
	for {
		rec, err := nextRecord(cr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		outcome := ParseRow(line, rec, cols)
		if outcome.OK() {
			candidates = append(candidates, *outcome.Candidate)
			continue
		}
		errs = append(errs, outcome.Errors...)
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Details: errs}
	}
	if len(candidates) == 0 {
		return nil, Invalid("No valid transaction rows found in CSV")
	}
	return candidates, nil
}

// ResolveColumns maps header names (trimmed, case-insensitive) to positions.
// It fails listing every required header that is absent.
func ResolveColumns(header []string) (Columns, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := pos[key]; !seen {
			pos[key] = i
		}
	}

	var missing []string
	for _, name := range requiredHeaders {
		if _, ok := pos[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Columns{}, Invalid("Missing required CSV headers: %s", strings.Join(missing, ", "))
	}

	return Columns{
		Reference:   pos[colReference],
		Timestamp:   pos[colTimestamp],
		Amount:      pos[colAmount],
		Currency:    pos[colCurrency],
		Description: pos[colDescription],
	}, nil
}

// nextRecord returns the next row that is not blank after trimming.
func nextRecord(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, Invalid("Unable to read CSV payload: %v", err)
		}
		if !isBlank(rec) {
			return rec, nil
		}
	}
}

func isBlank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
