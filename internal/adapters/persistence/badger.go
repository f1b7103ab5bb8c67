package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/okian/hurdletime/pkg/logger"
)

const keyPrefix = "hurdletime"

// BadgerStore persists blobs in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.
		WithLogger(badgerLogger{l: logger.Get().Named("badger")}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) key(key string) []byte {
	return []byte(keyPrefix + "/" + key)
}

func (s *BadgerStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return nil, false, ErrClosed
	case err != nil:
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return blob, true, nil
}

func (s *BadgerStore) Save(_ context.Context, key string, blob []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), blob)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logging into the app logger.
type badgerLogger struct {
	l logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(context.Background(), msg(format, args))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(context.Background(), msg(format, args))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(context.Background(), msg(format, args))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(context.Background(), msg(format, args))
}

func msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
