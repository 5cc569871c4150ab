package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cuemby/catena/pkg/types"
	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using Badger.
// Transactions are optimistic: concurrent writers proceed in parallel and a
// losing writer gets types.ErrConflict at commit.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a Badger database under dataDir
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "catena-badger"))
	opts.Logger = nil
	return openBadger(opts)
}

// NewInMemoryBadgerStore opens a Badger database that lives only in memory
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// View runs fn in a read-only transaction
func (s *BadgerStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(newTx(&badgerKV{txn: txn}))
	})
}

// Update runs fn in a read-write transaction
func (s *BadgerStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(newTx(&badgerKV{txn: txn}))
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", types.ErrConflict, err)
	}
	return err
}

// Drop removes all data
func (s *BadgerStore) Drop() error {
	return s.db.DropAll()
}

type badgerKV struct {
	txn *badger.Txn
}

func badgerKey(bucket, key []byte) []byte {
	k := make([]byte, 0, len(bucket)+1+len(key))
	k = append(k, bucket...)
	k = append(k, ':')
	return append(k, key...)
}

func (kv *badgerKV) get(bucket, key []byte) ([]byte, error) {
	item, err := kv.txn.Get(badgerKey(bucket, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (kv *badgerKV) put(bucket, key, value []byte) error {
	return kv.txn.Set(badgerKey(bucket, key), value)
}

func (kv *badgerKV) delete(bucket, key []byte) error {
	return kv.txn.Delete(badgerKey(bucket, key))
}

func (kv *badgerKV) scan(bucket, prefix []byte, fn func(key, value []byte) error) error {
	full := badgerKey(bucket, prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = full

	it := kv.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(full); it.ValidForPrefix(full); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		key := item.KeyCopy(nil)[len(bucket)+1:]
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Backup writes a full dump of the database to w
func (s *BadgerStore) Backup(w io.Writer) error {
	_, err := s.db.Backup(w, 0)
	return err
}
