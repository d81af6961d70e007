package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/banktx/internal/config"
	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/model"
)

func ts(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func candidate(ref string, at time.Time, amount string) model.Candidate {
	return model.Candidate{Reference: ref, Timestamp: at, Amount: dec(amount), Currency: "EUR"}
}

func insert(t *testing.T, s Store, batchID string, cs ...model.Candidate) error {
	t.Helper()
	return s.InTx(context.Background(), func(tx Tx) error {
		return tx.Insert(context.Background(), batchID, cs)
	})
}

func refs(txs []model.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.Reference
	}
	return out
}

// testStore runs the behaviour every Store must share.
func testStore(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := open(t)
		txs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("insert and list newest first", func(t *testing.T) {
		s := open(t)
		batch := uuid.NewString()
		c2 := candidate("TX2", ts(16, 14), "100.00")
		c2.Description = "Refund, partial"
		require.NoError(t, insert(t, s, batch,
			candidate("TX1", ts(15, 10), "500.00"),
			c2,
			candidate("TX3", ts(17, 9), "-50.00"),
		))

		txs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"TX3", "TX2", "TX1"}, refs(txs))

		for _, tr := range txs {
			assert.Equal(t, batch, tr.BatchID)
			assert.NotEmpty(t, tr.ID)
			assert.False(t, tr.CreatedAt.IsZero())
		}
		assert.Equal(t, "Refund, partial", txs[1].Description)
		assert.True(t, txs[1].Amount.Equal(dec("100")))
		assert.True(t, txs[0].Amount.Equal(dec("-50")))
		assert.True(t, txs[2].Timestamp.Equal(ts(15, 10)))
	})

	t.Run("existing references in request order", func(t *testing.T) {
		s := open(t)
		require.NoError(t, insert(t, s, uuid.NewString(),
			candidate("A", ts(1, 0), "1"),
			candidate("C", ts(2, 0), "1"),
		))

		var got []string
		err := s.InTx(ctx, func(tx Tx) error {
			var err error
			got, err = tx.ExistingReferences(ctx, []string{"C", "B", "A"})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A"}, got)
	})

	t.Run("conflict rejects whole batch", func(t *testing.T) {
		s := open(t)
		require.NoError(t, insert(t, s, uuid.NewString(), candidate("A", ts(1, 0), "1")))

		err := insert(t, s, uuid.NewString(),
			candidate("B", ts(2, 0), "1"),
			candidate("A", ts(3, 0), "1"),
		)
		var cerr *ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, []string{"A"}, cerr.References)

		txs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, refs(txs))
	})

	t.Run("failed unit of work leaves store unchanged", func(t *testing.T) {
		s := open(t)
		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx Tx) error {
			if err := tx.Insert(ctx, uuid.NewString(), []model.Candidate{candidate("X", ts(1, 0), "1")}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		txs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestMemory(t *testing.T) {
	testStore(t, func(t *testing.T) Store { return NewMemory() })
}

func TestFile(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return NewFile(filepath.Join(t.TempDir(), "data", "transactions.csv"))
	})
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("BANKTX_TEST_DSN")
	if dsn == "" {
		t.Skip("BANKTX_TEST_DSN not set")
	}

	testStore(t, func(t *testing.T) Store {
		ctx := context.Background()
		p, err := OpenPostgres(ctx, dsn)
		require.NoError(t, err)
		_, err = p.pool.Exec(ctx, `TRUNCATE bank_transaction`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })
		return p
	})
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, insert(t, NewFile(path), "b1", candidate("TX1", ts(15, 10), "1234567.891")))

	txs, err := NewFile(path).List(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "TX1", txs[0].Reference)
	assert.Equal(t, "1234567.891", txs[0].Amount.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), FileHeader)
}

func TestFile_SharedPathSerializesUnitsOfWork(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	first, second := NewFile(path), NewFile(path)

	started := make(chan struct{})
	secondErr := make(chan error, 1)

	err := first.InTx(ctx, func(tx Tx) error {
		go func() {
			<-started
			secondErr <- insert(t, second, "b2",
				candidate("TX1", ts(16, 0), "2"),
				candidate("TX2", ts(17, 0), "3"),
			)
		}()
		close(started)
		time.Sleep(100 * time.Millisecond)
		return tx.Insert(ctx, "b1", []model.Candidate{candidate("TX1", ts(15, 0), "1")})
	})
	require.NoError(t, err)

	var cerr *ConflictError
	require.ErrorAs(t, <-secondErr, &cerr)
	assert.Equal(t, []string{"TX1"}, cerr.References)

	txs, err := NewFile(path).List(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "b1", txs[0].BatchID)
}

func TestFile_LockHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.csv")
	holder, waiter := NewFile(path), NewFile(path)

	err := holder.InTx(context.Background(), func(tx Tx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		return waiter.InTx(ctx, func(tx Tx) error { return nil })
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFile_NoWriteWithoutInserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.csv")
	err := NewFile(path).InTx(context.Background(), func(tx Tx) error { return nil })
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUnmarshalTransaction_Errors(t *testing.T) {
	valid := []string{"id", "TX1", "2024-01-15T10:30:00Z", "1.5", "EUR", "", "b1", "2024-01-15T10:30:00Z"}

	tests := []struct {
		name   string
		col    int
		value  string
		errMsg string
	}{
		{"bad timestamp", colTimestamp, "yesterday", "parsing timestamp"},
		{"bad amount", colAmount, "lots", "parsing amount"},
		{"bad created_at", colCreatedAt, "", "parsing created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := append([]string(nil), valid...)
			rec[tt.col] = tt.value
			_, err := UnmarshalTransaction(rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := UnmarshalTransaction(valid[:3])
	assert.ErrorContains(t, err, "expected 8 fields, got 3")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: config.DriverFile, Path: filepath.Join(t.TempDir(), "tx.csv")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, config.StoreConfig{Driver: "sqlite"})
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}

func TestAsLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"too long",
			&pgconn.PgError{Code: stringDataTruncation, Message: "value too long for type character varying(32)"},
			"Transaction 'TX1' exceeds storage limits: value too long for type character varying(32)",
		},
		{
			"numeric overflow",
			&pgconn.PgError{Code: numericValueOutOfRange, Message: "numeric field overflow"},
			"Transaction 'TX1' exceeds storage limits: numeric field overflow",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr, ok := importer.AsValidationError(asLimitError(tt.err, "TX1"))
			require.True(t, ok)
			assert.Equal(t, []string{tt.want}, verr.Details)
		})
	}

	assert.Nil(t, asLimitError(&pgconn.PgError{Code: uniqueViolation}, "TX1"))
	assert.Nil(t, asLimitError(errors.New("boom"), "TX1"))
}

func TestPostgres_ValueLimits(t *testing.T) {
	dsn := os.Getenv("BANKTX_TEST_DSN")
	if dsn == "" {
		t.Skip("BANKTX_TEST_DSN not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()
	_, err = p.pool.Exec(ctx, `TRUNCATE bank_transaction`)
	require.NoError(t, err)

	long := candidate("TX-0123456789-0123456789-0123456789", ts(1, 0), "1")
	_, ok := importer.AsValidationError(insert(t, p, uuid.NewString(), long))
	assert.True(t, ok)

	huge := candidate("TX1", ts(1, 0), "1e18")
	_, ok = importer.AsValidationError(insert(t, p, uuid.NewString(), huge))
	assert.True(t, ok)
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{References: []string{"A", "B"}}
	assert.Equal(t, "reference conflict: A, B", err.Error())
}
