// Package ledger ties together the block, utxo, mempool, consensus, and
// storage packages into a single engine that accepts transactions, mines
// blocks, and applies them. It deliberately carries no fork-choice or
// reorganization logic: the engine assumes a single authoritative chain,
// consistent with a core meant to be embedded behind a separate p2p layer
// that would own any reorg decision.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/gochain/gochain/pkg/consensus"
	"github.com/gochain/gochain/pkg/keys"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/mempool"
	"github.com/gochain/gochain/pkg/storage"
	"github.com/gochain/gochain/pkg/utxo"
)

// BlockReward is the fixed coinbase subsidy paid to whoever mines a block,
// before fees. There is no halving schedule in this engine: it is a
// constant for the life of a running node.
const BlockReward uint64 = 50_000_000_000

// Kind enumerates the taxonomy of errors the engine can surface.
type Kind int

const (
	KindInconsistentStorage Kind = iota
	KindStorageFailure
	KindSignatureFailure
	KindInvalidCoinbase
	KindInvalidBlock
	KindInvalidProofOfWork
	KindUTXONotFound
	KindDoubleSpend
	KindInsufficientFunds
	KindInvalidTransaction
	KindMempoolConflict
)

func (k Kind) String() string {
	switch k {
	case KindInconsistentStorage:
		return "InconsistentStorage"
	case KindStorageFailure:
		return "StorageFailure"
	case KindSignatureFailure:
		return "SignatureFailure"
	case KindInvalidCoinbase:
		return "InvalidCoinbase"
	case KindInvalidBlock:
		return "InvalidBlock"
	case KindInvalidProofOfWork:
		return "InvalidProofOfWork"
	case KindUTXONotFound:
		return "UtxoNotFound"
	case KindDoubleSpend:
		return "DoubleSpend"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindInvalidTransaction:
		return "InvalidTransaction"
	case KindMempoolConflict:
		return "MempoolConflict"
	default:
		return "Unknown"
	}
}

// Error is the typed error every engine operation returns on failure, so
// embedders can errors.As to the taxonomy instead of matching strings.
type Error struct {
	Kind    Kind
	Message string
	TxID    chainhash.ChainHash
	Vout    uint32
	inner   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("ledger: %s", e.Kind)
}

// Unwrap exposes the wrapped storage error, if any, so errors.Is/As reach
// through to the underlying cause.
func (e *Error) Unwrap() error { return e.inner }

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func wrapErr(kind Kind, inner error) *Error {
	return &Error{Kind: kind, Message: inner.Error(), inner: inner}
}

func utxoErr(kind Kind, op block.OutPoint, msg string) *Error {
	return &Error{Kind: kind, Message: msg, TxID: op.TxID, Vout: op.Vout}
}

// Engine is the ledger core: it owns the chain tip, the mempool, and the
// shared UTXO set, and is the only component permitted to mutate any of
// them.
type Engine struct {
	mu sync.RWMutex

	tipHash  chainhash.ChainHash
	tipBlock block.Block

	pool      *mempool.Mempool
	utxoSet   *utxo.Set
	store     storage.BlockStore
	consensus *consensus.Consensus
	log       *logger.Logger

	// reservations records, for every pooled transaction id, the
	// outpoints it holds a UTXO reservation against — the engine owns
	// reservation and release directly, per the mempool's "no UTXO
	// authority" contract, and needs this to release evicted entries.
	reservations map[chainhash.ChainHash][]block.OutPoint

	minerAddr chainhash.AddressHash
	workers   int
}

// Config configures a new Engine.
type Config struct {
	MinerAddr   chainhash.AddressHash
	Consensus   consensus.Config
	Mempool     mempool.Config
	WorkerCount int // concurrent transaction validators during ApplyBlock; 0 means GOMAXPROCS-sized default
	Logger      *logger.Logger
}

// New constructs an Engine around store. Call Init before use.
func New(store storage.BlockStore, config Config) *Engine {
	log := config.Logger
	if log == nil {
		log = logger.NewLogger(logger.DefaultConfig())
	}
	workers := config.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		pool:         mempool.New(config.Mempool),
		utxoSet:      utxo.New(),
		store:        store,
		consensus:    consensus.New(config.Consensus),
		log:          log,
		reservations: make(map[chainhash.ChainHash][]block.OutPoint),
		minerAddr:    config.MinerAddr,
		workers:      workers,
	}
}

// Init loads the latest block from storage, constructing and persisting
// genesis if storage is empty, then rebuilds the UTXO set from the
// persisted chain.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	latest, err := e.store.GetLatestBlock()
	if err != nil {
		if err != storage.ErrNotFound {
			return wrapErr(KindStorageFailure, err)
		}
		genesis := block.Genesis(e.minerAddr, BlockReward, e.consensus.Bits())
		if err := e.store.SaveBlock(genesis); err != nil {
			return wrapErr(KindStorageFailure, err)
		}
		if err := e.store.SetLatestBlockHash(genesis.Hash); err != nil {
			return wrapErr(KindStorageFailure, err)
		}
		e.tipHash = genesis.Hash
		e.tipBlock = genesis
		e.log.Info("initialized new chain with genesis block %s", genesis.Hash)
	} else {
		e.tipHash = latest.Hash
		e.tipBlock = latest
		e.log.Info("loaded chain tip at height %d (%s)", latest.Header.Height, latest.Hash)
	}

	return e.rebuildUTXOSetLocked()
}

// RebuildUTXOSet clears the UTXO set and replays every persisted block's
// deltas from height 0 forward.
func (e *Engine) RebuildUTXOSet() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildUTXOSetLocked()
}

func (e *Engine) rebuildUTXOSetLocked() error {
	e.utxoSet.Clear()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks, errc := e.store.StreamBlocksByHeight(ctx)
	for b := range blocks {
		e.utxoSet.ApplyBlock(b)
	}
	if err := <-errc; err != nil {
		return wrapErr(KindStorageFailure, err)
	}
	return nil
}

// validatedTransaction carries the bookkeeping ValidateTransaction
// computes so AddTransaction and ApplyBlock don't redo the lookups.
type validatedTransaction struct {
	outpoints []block.OutPoint
	fee       uint64
}

// ValidateTransaction checks tx against the mempool and UTXO set without
// mutating either: every signature must verify, every input must resolve
// to an unspent, unreserved output locked to the signing key's address,
// no input may repeat within the transaction, and outputs must not exceed
// inputs. It returns the outpoints tx reserves and the fee it pays.
func (e *Engine) ValidateTransaction(tx block.Transaction) (validatedTransaction, error) {
	return e.validateTx(tx, false)
}

// validateTx is ValidateTransaction's body. forBlock skips the mempool
// membership check, since a transaction being confirmed by a block is
// expected to already sit in the pool. In either mode an input reserved
// by tx itself is accepted; a reservation held by any other transaction
// is a double spend.
func (e *Engine) validateTx(tx block.Transaction, forBlock bool) (validatedTransaction, error) {
	if !forBlock {
		if _, pooled := e.pool.Get(tx.ID); pooled {
			return validatedTransaction{}, newErr(KindMempoolConflict, tx.ID.String())
		}
	}
	if err := block.VerifySignatures(tx); err != nil {
		return validatedTransaction{}, wrapErr(KindSignatureFailure, err)
	}

	seen := make(map[block.OutPoint]bool, len(tx.Inputs))
	outpoints := make([]block.OutPoint, 0, len(tx.Inputs))
	totalIn := uint64(0)
	digest := block.SigningDigest(tx)

	for _, in := range tx.Inputs {
		op := block.OutPoint{TxID: in.PrevTxID, Vout: in.PrevVout}
		if seen[op] {
			return validatedTransaction{}, utxoErr(KindDoubleSpend, op, "repeated within transaction")
		}
		seen[op] = true

		if by, reservedBy := e.utxoSet.IsReserved(op); reservedBy && by != tx.ID {
			return validatedTransaction{}, utxoErr(KindDoubleSpend, op, "already reserved in mempool")
		}

		prevOut, ok := e.utxoSet.Get(op)
		if !ok {
			return validatedTransaction{}, utxoErr(KindUTXONotFound, op, "unknown or already spent output")
		}

		wantAddr, err := prevOut.ScriptPubKey.Address()
		if err != nil {
			return validatedTransaction{}, wrapErr(KindInvalidTransaction, err)
		}
		sigDER, pub, err := keys.ParseScriptSig(in.ScriptSig)
		if err != nil {
			return validatedTransaction{}, wrapErr(KindSignatureFailure, err)
		}
		gotAddr, err := keys.VerifySignature(digest, sigDER, pub)
		if err != nil {
			return validatedTransaction{}, wrapErr(KindSignatureFailure, err)
		}
		if gotAddr != wantAddr {
			return validatedTransaction{}, newErr(KindSignatureFailure, "script-sig public key does not match output address")
		}

		totalIn += prevOut.Value
		outpoints = append(outpoints, op)
	}

	totalOut := uint64(0)
	for _, out := range tx.Outputs {
		if out.Value == 0 {
			return validatedTransaction{}, newErr(KindInvalidTransaction, "output value must be nonzero")
		}
		totalOut += out.Value
	}

	if totalIn < totalOut {
		return validatedTransaction{}, newErr(KindInsufficientFunds, fmt.Sprintf("inputs %d < outputs %d", totalIn, totalOut))
	}

	return validatedTransaction{outpoints: outpoints, fee: totalIn - totalOut}, nil
}

// AddTransaction validates tx and, on success, reserves its inputs
// directly against the UTXO set (the mempool holds no UTXO authority of
// its own) and admits it to the mempool. Any transaction the mempool
// evicts to make room has its reservation released here.
func (e *Engine) AddTransaction(tx block.Transaction) (chainhash.ChainHash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.ValidateTransaction(tx)
	if err != nil {
		return chainhash.ChainHash{}, err
	}

	if err := e.utxoSet.Reserve(tx.ID, v.outpoints); err != nil {
		return chainhash.ChainHash{}, wrapErr(KindDoubleSpend, err)
	}

	evicted, err := e.pool.Add(tx, v.fee)
	if err != nil {
		e.utxoSet.Release(tx.ID, v.outpoints)
		return chainhash.ChainHash{}, newErr(KindMempoolConflict, err.Error())
	}
	e.reservations[tx.ID] = v.outpoints
	for _, id := range evicted {
		if ops, ok := e.reservations[id]; ok {
			e.utxoSet.Release(id, ops)
			delete(e.reservations, id)
		}
	}

	return tx.ID, nil
}

// MinePending drains the mempool highest-fee-first, prepends a coinbase
// paying the miner BlockReward plus collected fees, mines a block at
// tip.height+1, and applies it.
func (e *Engine) MinePending() error {
	e.mu.Lock()
	tip := e.tipBlock
	selected := e.pool.SelectForBlock(1 << 20)
	e.mu.Unlock()

	fees := uint64(0)
	txs := make([]block.Transaction, 0, len(selected)+1)
	for _, s := range selected {
		fees += s.Fee
		txs = append(txs, s.Tx)
	}

	coinbase := block.Coinbase(e.minerAddr, BlockReward+fees)
	txs = append([]block.Transaction{coinbase}, txs...)

	mined, err := block.Mine(tip.Header.Height+1, txs, tip.Hash, e.consensus.Bits(), uint64(time.Now().UnixMilli()))
	if err != nil {
		return wrapErr(KindInvalidProofOfWork, err)
	}

	return e.ApplyBlock(mined)
}

// ApplyBlock validates b against the current tip and consensus rules,
// fans non-coinbase transaction validation out across a bounded worker
// pool (each worker only reads the UTXO set), checks the coinbase claims
// no more than the block reward plus collected fees, then mutates the
// UTXO set, persists the block, and advances the tip.
func (e *Engine) ApplyBlock(b block.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b.Header.Height != e.tipBlock.Header.Height+1 {
		return newErr(KindInvalidBlock, fmt.Sprintf("expected height %d, got %d", e.tipBlock.Header.Height+1, b.Header.Height))
	}
	if b.Header.PrevBlockHash != e.tipHash {
		return newErr(KindInvalidBlock, "prev_block_hash does not match tip")
	}
	if len(b.Transactions) == 0 {
		return newErr(KindInvalidBlock, "block has no transactions")
	}
	if !block.IsCoinbase(b.Transactions[0]) {
		return newErr(KindInvalidCoinbase, "first transaction must be coinbase")
	}
	if err := block.VerifyMerkleRoot(b); err != nil {
		return wrapErr(KindInvalidBlock, err)
	}
	if err := e.consensus.ValidateTimestamp(b, time.Now()); err != nil {
		return wrapErr(KindInvalidBlock, err)
	}
	if err := e.consensus.ValidateProofOfWork(b); err != nil {
		return wrapErr(KindInvalidProofOfWork, err)
	}

	// Per-transaction validation only sees one transaction at a time, so
	// two block transactions spending the same outpoint must be caught here.
	spent := make(map[block.OutPoint]bool)
	for _, op := range block.UTXORemovals(b) {
		if spent[op] {
			return utxoErr(KindDoubleSpend, op, "outpoint spent twice within block")
		}
		spent[op] = true
	}

	fees, err := e.validateNonCoinbaseConcurrently(b.Transactions[1:])
	if err != nil {
		return err
	}

	coinbaseTotal := uint64(0)
	for _, out := range b.Transactions[0].Outputs {
		if out.Value == 0 {
			return newErr(KindInvalidCoinbase, "coinbase output value must be nonzero")
		}
		coinbaseTotal += out.Value
	}
	if coinbaseTotal > BlockReward+fees {
		return newErr(KindInvalidCoinbase, fmt.Sprintf("coinbase claims %d, max allowed %d", coinbaseTotal, BlockReward+fees))
	}

	e.utxoSet.ApplyBlock(b)

	confirmedIDs := make([]chainhash.ChainHash, 0, len(b.Transactions)-1)
	for _, tx := range b.Transactions[1:] {
		confirmedIDs = append(confirmedIDs, tx.ID)
	}
	e.pool.RemoveMined(confirmedIDs)
	for _, id := range confirmedIDs {
		delete(e.reservations, id)
	}

	if err := e.store.SaveBlock(b); err != nil {
		return wrapErr(KindStorageFailure, err)
	}
	if err := e.store.SetLatestBlockHash(b.Hash); err != nil {
		return wrapErr(KindStorageFailure, err)
	}

	e.tipHash = b.Hash
	e.tipBlock = b
	e.log.Info("applied block %d (%s), %d transactions", b.Header.Height, b.Hash, len(b.Transactions))
	return nil
}

// validateNonCoinbaseConcurrently runs validateTx in block mode for every
// tx in txs across e.workers goroutines. Workers only read the UTXO set,
// through its read-locked accessors; nothing here writes to it. It returns
// the total fee collected, or the first validation error encountered.
func (e *Engine) validateNonCoinbaseConcurrently(txs []block.Transaction) (uint64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	type job struct {
		index int
		tx    block.Transaction
	}
	jobs := make(chan job)
	fees := make([]uint64, len(txs))
	errCh := make(chan error, len(txs))

	workers := e.workers
	if workers > len(txs) {
		workers = len(txs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				v, err := e.validateTx(j.tx, true)
				if err != nil {
					errCh <- err
					continue
				}
				fees[j.index] = v.fee
			}
		}()
	}

	for i, tx := range txs {
		jobs <- job{index: i, tx: tx}
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return 0, err
	}

	total := uint64(0)
	for _, f := range fees {
		total += f
	}
	return total, nil
}

// GetBlocks streams every persisted block in height order and collects it.
func (e *Engine) GetBlocks() ([]block.Block, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks, errc := e.store.StreamBlocksByHeight(ctx)

	var out []block.Block
	for b := range blocks {
		out = append(out, b)
	}
	if err := <-errc; err != nil {
		return nil, wrapErr(KindStorageFailure, err)
	}
	return out, nil
}

// GetUTXOsByAddress delegates to the UTXO set.
func (e *Engine) GetUTXOsByAddress(addr chainhash.AddressHash) []utxo.AddressUTXO {
	return e.utxoSet.ByAddress(addr)
}

// Stats is a read-only snapshot of engine state for diagnostics.
type Stats struct {
	TipHeight uint64
	TipHash   chainhash.ChainHash
	MempoolN  int
	UTXOCount int
}

// Stats returns a snapshot of the engine's current tip, mempool size, and
// UTXO count.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		TipHeight: e.tipBlock.Header.Height,
		TipHash:   e.tipHash,
		MempoolN:  e.pool.Len(),
		UTXOCount: e.utxoSet.Len(),
	}
}

// SubmitTransaction is the embedder-facing alias for AddTransaction.
func (e *Engine) SubmitTransaction(tx block.Transaction) (chainhash.ChainHash, error) {
	return e.AddTransaction(tx)
}

// ListBlocks is the embedder-facing alias for GetBlocks.
func (e *Engine) ListBlocks() ([]block.Block, error) { return e.GetBlocks() }

// ListUTXOsByAddress is the embedder-facing alias for GetUTXOsByAddress.
func (e *Engine) ListUTXOsByAddress(addr chainhash.AddressHash) []utxo.AddressUTXO {
	return e.GetUTXOsByAddress(addr)
}
