// Package storage persists blocks to BadgerDB behind a hash index, a
// height index, and a pointer to the chain tip.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
)

// ErrNotFound is returned when a requested block does not exist.
var ErrNotFound = errors.New("storage: not found")

const (
	prefixHeight  = "height_"
	prefixHash    = "hash_"
	keyLatestHash = "latest_block_hash"
)

// streamBuffer is the capacity of the channel StreamBlocksByHeight fills:
// the producer can run ahead of a slow consumer by this many blocks before
// it blocks.
const streamBuffer = 100

// Config configures the on-disk store.
type Config struct {
	DataDir string
}

// DefaultConfig returns a conservative starting configuration.
func DefaultConfig() Config {
	return Config{DataDir: "./data"}
}

// Store is the badger-backed block store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a store rooted at config.DataDir.
func Open(config Config) (*Store, error) {
	opts := badger.DefaultOptions(config.DataDir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashKey(hash chainhash.ChainHash) []byte {
	return append([]byte(prefixHash), hash[:]...)
}

// heightKey encodes the height big-endian so byte-lexicographic key order
// equals numeric height order, which the streaming iterator relies on.
func heightKey(height uint64) []byte {
	buf := make([]byte, len(prefixHeight)+8)
	copy(buf, prefixHeight)
	binary.BigEndian.PutUint64(buf[len(prefixHeight):], height)
	return buf
}

// SaveBlock serializes b once and writes it under both the height index
// and the hash index in a single transaction. The latest pointer is not
// touched here; callers advance it with SetLatestBlockHash.
func (s *Store) SaveBlock(b block.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("storage: marshal block: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(heightKey(b.Header.Height), data); err != nil {
			return err
		}
		return txn.Set(hashKey(b.Hash), data)
	})
}

func (s *Store) getBlockByKey(key []byte) (block.Block, error) {
	var b block.Block
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		})
	})
	return b, err
}

// LoadBlock retrieves the block with the given hash.
func (s *Store) LoadBlock(hash chainhash.ChainHash) (block.Block, error) {
	return s.getBlockByKey(hashKey(hash))
}

// LoadBlockByHeight retrieves the block at the given height.
func (s *Store) LoadBlockByHeight(height uint64) (block.Block, error) {
	return s.getBlockByKey(heightKey(height))
}

// GetLatestBlockHash returns the hash the latest pointer currently names.
// The pointer is an optimization, not the source of truth: a crash between
// SaveBlock and SetLatestBlockHash can leave it one block behind, and
// GetLatestBlock does not depend on it.
func (s *Store) GetLatestBlockHash() (chainhash.ChainHash, error) {
	var hash chainhash.ChainHash
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatestHash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			copy(hash[:], val)
			return nil
		})
	})
	return hash, err
}

// SetLatestBlockHash advances the latest pointer.
func (s *Store) SetLatestBlockHash(hash chainhash.ChainHash) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyLatestHash), hash[:])
	})
}

// GetLatestBlock scans the height index in reverse and returns the first
// (highest) entry, so a block persisted without a latest-pointer update is
// still found. ErrNotFound if the store is empty.
func (s *Store) GetLatestBlock() (block.Block, error) {
	var b block.Block
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixHeight)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the largest possible height key; reverse iteration
		// lands on the highest stored height.
		seek := heightKey(^uint64(0))
		it.Seek(seek)
		if !it.ValidForPrefix([]byte(prefixHeight)) {
			return ErrNotFound
		}
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		})
	})
	return b, err
}

// StreamBlocksByHeight streams every persisted block onto the returned
// channel in height order. The producer goroutine stops and closes the
// channel when the iteration finishes, an error occurs, or ctx is
// cancelled; the error channel carries at most one error.
func (s *Store) StreamBlocksByHeight(ctx context.Context) (<-chan block.Block, <-chan error) {
	out := make(chan block.Block, streamBuffer)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefixHeight)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(prefixHeight)); it.ValidForPrefix([]byte(prefixHeight)); it.Next() {
				var b block.Block
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &b)
				}); err != nil {
					return err
				}

				select {
				case out <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	return out, errc
}

// Has reports whether a block with the given hash is stored.
func (s *Store) Has(hash chainhash.ChainHash) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(hashKey(hash))
		return err
	})
	return err == nil
}
