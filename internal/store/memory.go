package store

import (
	"context"
	"sync"
	"time"

	"github.com/cleared-dev/banktx/internal/model"
)

// Memory is an in-process Store. Units of work are serialized.
type Memory struct {
	mu   sync.Mutex
	txs  []model.Transaction
	refs map[string]bool
	now  func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{refs: make(map[string]bool), now: time.Now}
}

// InTx runs fn under the store mutex and applies its inserts only on success.
func (m *Memory) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &stagedTx{seen: m.refs, now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, t := range tx.staged {
		m.refs[t.Reference] = true
	}
	m.txs = append(m.txs, tx.staged...)
	return nil
}

// List returns a copy of the stored transactions, newest first.
func (m *Memory) List(ctx context.Context) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Transaction, len(m.txs))
	copy(out, m.txs)
	sortNewestFirst(out)
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// stagedTx buffers inserts until the unit of work succeeds. seen is the
// committed reference set and is only read.
type stagedTx struct {
	seen   map[string]bool
	staged []model.Transaction
	now    func() time.Time
}

func (t *stagedTx) ExistingReferences(ctx context.Context, refs []string) ([]string, error) {
	return existing(t.all(), refs), nil
}

func (t *stagedTx) Insert(ctx context.Context, batchID string, cs []model.Candidate) error {
	if hits := conflicts(t.all(), cs); len(hits) > 0 {
		return &ConflictError{References: hits}
	}
	t.staged = append(t.staged, newTransactions(batchID, cs, t.now().UTC())...)
	return nil
}

func (t *stagedTx) all() map[string]bool {
	if len(t.staged) == 0 {
		return t.seen
	}
	all := make(map[string]bool, len(t.seen)+len(t.staged))
	for r := range t.seen {
		all[r] = true
	}
	for _, s := range t.staged {
		all[s.Reference] = true
	}
	return all
}
