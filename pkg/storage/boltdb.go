package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store using BoltDB.
// BoltDB allows a single writer at a time, so Update calls are serialized.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "catena.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func createBuckets(tx *bolt.Tx) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// View runs fn in a read-only transaction
func (s *BoltStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(newTx(&boltKV{tx: btx}))
	})
}

// Update runs fn in a read-write transaction
func (s *BoltStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(newTx(&boltKV{tx: btx}))
	})
}

// Drop removes every bucket and recreates them empty
func (s *BoltStore) Drop() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if err := tx.DeleteBucket(bucket); err != nil && err != bolt.ErrBucketNotFound {
				return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
			}
		}
		return createBuckets(tx)
	})
}

type boltKV struct {
	tx *bolt.Tx
}

func (kv *boltKV) bucket(name []byte) (*bolt.Bucket, error) {
	b := kv.tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket %s missing", name)
	}
	return b, nil
}

func (kv *boltKV) get(bucket, key []byte) ([]byte, error) {
	b, err := kv.bucket(bucket)
	if err != nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, nil
	}
	// values are only valid for the life of the transaction
	return append([]byte(nil), v...), nil
}

func (kv *boltKV) put(bucket, key, value []byte) error {
	b, err := kv.bucket(bucket)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (kv *boltKV) delete(bucket, key []byte) error {
	b, err := kv.bucket(bucket)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

func (kv *boltKV) scan(bucket, prefix []byte, fn func(key, value []byte) error) error {
	b, err := kv.bucket(bucket)
	if err != nil {
		return err
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Backup writes a consistent copy of the database file to w
func (s *BoltStore) Backup(w io.Writer) error {
	return s.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
}
