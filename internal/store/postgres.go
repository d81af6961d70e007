package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/model"
)

const (
	uniqueViolation        = "23505"
	stringDataTruncation   = "22001"
	numericValueOutOfRange = "22003"
)

const schema = `
CREATE TABLE IF NOT EXISTS bank_transaction (
	id          uuid PRIMARY KEY,
	reference   varchar(32) NOT NULL,
	occurred_at timestamptz NOT NULL,
	amount      numeric(19, 2) NOT NULL,
	currency    char(3) NOT NULL,
	description varchar(1024),
	batch_id    uuid NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT bank_transaction_reference_key UNIQUE (reference)
);
CREATE INDEX IF NOT EXISTS bank_transaction_occurred_at_idx ON bank_transaction (occurred_at DESC);
`

var conflictDetail = regexp.MustCompile(`\(reference\)=\((.*)\)`)

// Postgres is a Store backed by a bank_transaction table.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{pool: pool, now: time.Now}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the bank_transaction table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a database transaction, rolled back unless fn succeeds.
func (p *Postgres) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, now: p.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if cerr := asConflict(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List returns every row of bank_transaction, newest first.
func (p *Postgres) List(ctx context.Context) ([]model.Transaction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, reference, occurred_at, amount::text, currency, COALESCE(description, ''), batch_id::text, created_at
		FROM bank_transaction
		ORDER BY occurred_at DESC, reference
	`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.Reference, &t.Timestamp, &amount, &t.Currency, &t.Description, &t.BatchID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing amount %q of %s: %w", amount, t.Reference, err)
		}
		t.Timestamp = t.Timestamp.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return txs, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *pgTx) ExistingReferences(ctx context.Context, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(ctx, `SELECT reference FROM bank_transaction WHERE reference = ANY($1)`, refs)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting references: %w", err)
	}

	seen := make(map[string]bool, len(found))
	for _, r := range found {
		seen[r] = true
	}
	return existing(seen, refs), nil
}

func (t *pgTx) Insert(ctx context.Context, batchID string, cs []model.Candidate) error {
	for _, tr := range newTransactions(batchID, cs, t.now().UTC()) {
		var desc *string
		if tr.HasDescription() {
			desc = &tr.Description
		}
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO bank_transaction (id, reference, occurred_at, amount, currency, description, batch_id, created_at)
			VALUES ($1::uuid, $2, $3, CAST($4::text AS numeric), $5, $6, $7::uuid, $8)
		`, tr.ID, tr.Reference, tr.Timestamp, tr.Amount.String(), tr.Currency, desc, tr.BatchID, tr.CreatedAt); err != nil {
			if cerr := asConflict(err); cerr != nil {
				return cerr
			}
			if lerr := asLimitError(err, tr.Reference); lerr != nil {
				return lerr
			}
			return fmt.Errorf("inserting %s: %w", tr.Reference, err)
		}
	}
	return nil
}

// asConflict maps a unique violation to a ConflictError, or returns nil.
func asConflict(err error) *ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	var refs []string
	if m := conflictDetail.FindStringSubmatch(pgErr.Detail); m != nil {
		refs = []string{m[1]}
	}
	return &ConflictError{References: refs}
}

// asLimitError maps a value that does not fit its column (reference longer
// than 32, description longer than 1024, amount beyond numeric(19,2)) to a
// validation error naming the row, or returns nil.
func asLimitError(err error, ref string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case stringDataTruncation, numericValueOutOfRange:
		return importer.Invalid("Transaction '%s' exceeds storage limits: %s", ref, pgErr.Message)
	}
	return nil
}
