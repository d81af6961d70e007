package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/logger"
	"github.com/cleared-dev/banktx/internal/model"
	"github.com/cleared-dev/banktx/internal/store"
)

// Service imports CSV batches into a store and lists what was stored.
type Service struct {
	store store.Store
	newID func() string
}

// NewService creates a ledger Service over s.
func NewService(s store.Store) *Service {
	return &Service{store: s, newID: uuid.NewString}
}

// Result is the receipt of a successful import.
type Result struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

// Import parses r, rejects duplicates and stores every row in one unit of
// work. A *importer.ValidationError means the payload was rejected; any other
// error is unexpected. On error nothing is stored.
func (s *Service) Import(ctx context.Context, r io.Reader) (Result, error) {
	log := logger.FromContext(ctx)

	candidates, err := importer.ParseBatch(r)
	if err != nil {
		return Result{}, s.fail(ctx, err)
	}
	if err := CheckBatchDuplicates(candidates); err != nil {
		return Result{}, s.fail(ctx, err)
	}

	batchID := s.newID()
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.ExistingReferences(ctx, References(candidates))
		if err != nil {
			return fmt.Errorf("checking stored references: %w", err)
		}
		if err := CheckStoredDuplicates(existing); err != nil {
			return err
		}
		return tx.Insert(ctx, batchID, candidates)
	})
	if err != nil {
		var cerr *store.ConflictError
		if errors.As(err, &cerr) {
			err = conflictError(cerr, candidates)
		}
		return Result{}, s.fail(ctx, err)
	}

	log.Info().Str("batch_id", batchID).Int("count", len(candidates)).Msg("imported transactions")
	return Result{BatchID: batchID, Count: len(candidates)}, nil
}

// List returns every stored transaction, newest first.
func (s *Service) List(ctx context.Context) ([]model.Transaction, error) {
	txs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) fail(ctx context.Context, err error) error {
	log := logger.FromContext(ctx)
	if verr, ok := importer.AsValidationError(err); ok {
		log.Warn().Strs("details", verr.Details).Msg("import rejected")
		return verr
	}
	log.Error().Err(err).Msg("import failed")
	return fmt.Errorf("importing transactions: %w", err)
}

// conflictError reports a commit-time uniqueness conflict the same way as a
// stored duplicate. When the store could not name the references, every
// candidate reference is reported.
func conflictError(cerr *store.ConflictError, cs []model.Candidate) error {
	refs := cerr.References
	if len(refs) == 0 {
		refs = References(cs)
	}
	return CheckStoredDuplicates(refs)
}
