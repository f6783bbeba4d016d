package storage

import (
	"context"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
)

// BlockStore is the persistence contract the ledger engine depends on,
// satisfied by *Store.
type BlockStore interface {
	SaveBlock(b block.Block) error
	LoadBlock(hash chainhash.ChainHash) (block.Block, error)
	LoadBlockByHeight(height uint64) (block.Block, error)
	GetLatestBlock() (block.Block, error)
	GetLatestBlockHash() (chainhash.ChainHash, error)
	SetLatestBlockHash(hash chainhash.ChainHash) error
	StreamBlocksByHeight(ctx context.Context) (<-chan block.Block, <-chan error)
	Has(hash chainhash.ChainHash) bool
	Close() error
}

var _ BlockStore = (*Store)(nil)
