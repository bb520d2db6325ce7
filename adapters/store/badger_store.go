package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/dgraph-io/badger/v3"
)

// BadgerStore is a durable local Store backed by Badger
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens a Badger database in dir. An empty dir opens an in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key
func (s *BadgerStore) Get(ctx context.Context, key string) (string, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return string(value), nil
}

// Set stores value under key; a positive ttl becomes the entry TTL
func (s *BadgerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one transaction
func (s *BadgerStore) Delete(ctx context.Context, keys ...string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// CompareAndDelete reads and deletes in one update transaction.
// Badger's optimistic concurrency aborts a conflicting concurrent consumer with ErrConflict,
// which is reported as a failed comparison.
func (s *BadgerStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(value) != expected {
			return nil
		}
		deleted = true
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare and delete %s: %w", key, err)
	}
	return deleted, nil
}
