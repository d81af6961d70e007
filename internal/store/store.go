package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/banktx/internal/config"
	"github.com/cleared-dev/banktx/internal/model"
)

// Store persists transactions. Every write goes through InTx.
type Store interface {
	// InTx runs fn as one unit of work. If fn returns an error nothing fn
	// wrote is visible afterwards.
	InTx(ctx context.Context, fn func(Tx) error) error
	// List returns every stored transaction, newest timestamp first.
	List(ctx context.Context) ([]model.Transaction, error)
	Close() error
}

// Tx is the view of the store inside a unit of work.
type Tx interface {
	// ExistingReferences returns the subset of refs already stored.
	ExistingReferences(ctx context.Context, refs []string) ([]string, error)
	// Insert stores all candidates under batchID, or none of them.
	Insert(ctx context.Context, batchID string, cs []model.Candidate) error
}

// ConflictError reports references rejected by the store's uniqueness rule.
type ConflictError struct {
	References []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reference conflict: %s", strings.Join(e.References, ", "))
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverFile:
		return NewFile(cfg.Path), nil
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newTransactions stamps candidates with IDs, the batch ID and a creation time.
func newTransactions(batchID string, cs []model.Candidate, now time.Time) []model.Transaction {
	txs := make([]model.Transaction, len(cs))
	for i, c := range cs {
		txs[i] = model.Transaction{
			Candidate: c,
			ID:        uuid.NewString(),
			BatchID:   batchID,
			CreatedAt: now,
		}
	}
	return txs
}

// sortNewestFirst orders by timestamp descending, then reference.
func sortNewestFirst(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].Reference < txs[j].Reference
	})
}

// conflicts returns the references of cs that are already in seen or repeat
// within cs, in batch order.
func conflicts(seen map[string]bool, cs []model.Candidate) []string {
	var hits []string
	batch := make(map[string]bool, len(cs))
	for _, c := range cs {
		if seen[c.Reference] || batch[c.Reference] {
			hits = append(hits, c.Reference)
		}
		batch[c.Reference] = true
	}
	return hits
}

// existing filters refs down to those present in seen, keeping order.
func existing(seen map[string]bool, refs []string) []string {
	var hits []string
	for _, r := range refs {
		if seen[r] {
			hits = append(hits, r)
		}
	}
	return hits
}
