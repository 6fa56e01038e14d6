package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const sequenceBandwidth = 100

// Backend owns the BadgerDB handle shared by the repositories in this
// package.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// dbLogger routes badger's internal logging through slog.
type dbLogger struct{ l *slog.Logger }

var _ badger.Logger = dbLogger{}

func (d dbLogger) Errorf(format string, args ...any)   { d.l.Error(fmt.Sprintf(format, args...)) }
func (d dbLogger) Warningf(format string, args ...any) { d.l.Warn(fmt.Sprintf(format, args...)) }
func (d dbLogger) Infof(format string, args ...any)    { d.l.Info(fmt.Sprintf(format, args...)) }
func (d dbLogger) Debugf(format string, args ...any)   { d.l.Debug(fmt.Sprintf(format, args...)) }

// OpenBackend opens the database under dir, creating the directory when
// missing. With inMemory set, dir is ignored and nothing touches disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "storage")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("database directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = dbLogger{l: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db, logger: logger}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// WithTx runs fn inside a transaction, read-write when isWrite is set.
// The transaction is discarded unless fn commits it.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// GetSequence leases a monotonic id sequence under the given key.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), sequenceBandwidth)
}

// WithTransaction runs fn inside a committed read-write transaction.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
