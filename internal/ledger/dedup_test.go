package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/model"
)

func candidates(refs ...string) []model.Candidate {
	cs := make([]model.Candidate, len(refs))
	for i, r := range refs {
		cs[i] = model.Candidate{Reference: r}
	}
	return cs
}

func TestCheckBatchDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		refs    []string
		wantErr string
	}{
		{"empty", nil, ""},
		{"unique", []string{"TX001", "TX002"}, ""},
		{"first repeat wins", []string{"A", "B", "B", "A"}, "Duplicate reference 'B' in uploaded file"},
		{"case sensitive", []string{"tx1", "TX1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBatchDuplicates(candidates(tt.refs...))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			verr, ok := importer.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, []string{tt.wantErr}, verr.Details)
		})
	}
}

func TestCheckStoredDuplicates(t *testing.T) {
	assert.NoError(t, CheckStoredDuplicates(nil))

	verr, ok := importer.AsValidationError(CheckStoredDuplicates([]string{"TX001", "TX003"}))
	require.True(t, ok)
	assert.Equal(t, []string{"References already exist: TX001, TX003"}, verr.Details)
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, References(candidates("A", "B")))
	assert.Empty(t, References(nil))
}
