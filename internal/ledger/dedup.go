package ledger

import (
	"strings"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/model"
)

// CheckBatchDuplicates fails on the first reference that repeats within cs.
func CheckBatchDuplicates(cs []model.Candidate) error {
	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		if seen[c.Reference] {
			return importer.Invalid("Duplicate reference '%s' in uploaded file", c.Reference)
		}
		seen[c.Reference] = true
	}
	return nil
}

// CheckStoredDuplicates fails when any reference is already stored.
// existing lists the stored references in batch order.
func CheckStoredDuplicates(existing []string) error {
	if len(existing) == 0 {
		return nil
	}
	return importer.Invalid("References already exist: %s", strings.Join(existing, ", "))
}

// References returns the reference of every candidate, in order.
func References(cs []model.Candidate) []string {
	refs := make([]string, len(cs))
	for i, c := range cs {
		refs[i] = c.Reference
	}
	return refs
}
