package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/banktx/internal/model"
)

// FileHeader is the CSV header of the transaction file.
const FileHeader = "id,reference,timestamp,amount,currency,description,batch_id,created_at"

// lockRetry is how often a blocked unit of work retries the file lock.
const lockRetry = 20 * time.Millisecond

const (
	numFields      = 8
	colID          = 0
	colReference   = 1
	colTimestamp   = 2
	colAmount      = 3
	colCurrency    = 4
	colDescription = 5
	colBatchID     = 6
	colCreatedAt   = 7
)

// File is a Store backed by a single CSV file. A unit of work rewrites the
// file through a temp file and rename, so readers never see a partial batch.
// Units of work hold an advisory lock on path+".lock", which serializes them
// across processes sharing the file.
type File struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFile returns a File store at path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// InTx runs fn against a snapshot of the file taken under the file lock and
// rewrites the file if fn staged any inserts.
func (f *File) InTx(ctx context.Context, fn func(Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := f.read()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[t.Reference] = true
	}

	tx := &stagedTx{seen: seen, now: f.now}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.staged) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return f.write(append(current, tx.staged...))
}

// List reads the file, newest first. Writes replace the file by rename, so
// no lock is needed to read a consistent snapshot.
func (f *File) List(ctx context.Context) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	txs, err := f.read()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(txs)
	return txs, nil
}

// Close is a no-op; File holds no open handles between calls.
func (f *File) Close() error { return nil }

// lock takes the cross-process lock, waiting until ctx is done.
func (f *File) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	fl := flock.New(f.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("locking store %s: %w", f.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("locking store %s: lock not acquired", f.path)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (f *File) read() ([]model.Transaction, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", f.path, err)
	}
	defer file.Close()

	txs, err := ReadTransactions(file)
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", f.path, err)
	}
	return txs, nil
}

func (f *File) write(txs []model.Transaction) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTransactions(tmp, txs); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}

// ReadTransactions reads all transactions from a store CSV reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transaction CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txs []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// WriteTransactions writes transactions to w, header first.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(FileHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txs {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colReference] = t.Reference
	row[colTimestamp] = t.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colAmount] = t.Amount.String()
	row[colCurrency] = t.Currency
	row[colDescription] = t.Description
	row[colBatchID] = t.BatchID
	row[colCreatedAt] = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	created, err := time.Parse(time.RFC3339Nano, record[colCreatedAt])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
	}

	return model.Transaction{
		Candidate: model.Candidate{
			Reference:   record[colReference],
			Timestamp:   ts.UTC(),
			Amount:      amount,
			Currency:    record[colCurrency],
			Description: record[colDescription],
		},
		ID:        record[colID],
		BatchID:   record[colBatchID],
		CreatedAt: created.UTC(),
	}, nil
}
