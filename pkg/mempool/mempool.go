// Package mempool holds unconfirmed transactions and orders them by fee
// rate for block inclusion. It holds no UTXO authority of its own: the
// ledger engine computes each transaction's fee and owns reservation and
// release against the UTXO set directly; this package is a pure ordering
// aid over the set of entries the engine hands it.
package mempool

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
)

// Config holds the mempool's admission policy.
type Config struct {
	MaxSize    uint64 // maximum total size of pooled transactions, in bytes
	MinFeeRate uint64 // minimum fee per byte required for admission
}

// DefaultConfig returns a permissive starting configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 10_000_000, MinFeeRate: 1}
}

// entry wraps a pooled transaction with the bookkeeping the fee heap
// needs.
type entry struct {
	tx      block.Transaction
	fee     uint64
	size    uint64
	feeRate uint64
	addedAt time.Time
	index   int
}

// feeHeap is a max-heap over entries ordered by fee rate, highest first.
type feeHeap []*entry

func (h feeHeap) Len() int           { return len(h) }
func (h feeHeap) Less(i, j int) bool { return h[i].feeRate > h[j].feeRate }
func (h feeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *feeHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *feeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Mempool is the concurrency-safe, fee-ordered pool of pending
// transactions.
type Mempool struct {
	mu      sync.RWMutex
	config  Config
	entries map[chainhash.ChainHash]*entry
	byFee   feeHeap
	size    uint64
}

// New creates an empty mempool.
func New(config Config) *Mempool {
	mp := &Mempool{
		config:  config,
		entries: make(map[chainhash.ChainHash]*entry),
	}
	heap.Init(&mp.byFee)
	return mp
}

func transactionSize(tx block.Transaction) uint64 {
	size := uint64(16) // timestamp + input/output counts
	for _, in := range tx.Inputs {
		size += 32 + 4 + 4 + uint64(len(in.ScriptSig))
	}
	size += uint64(len(tx.Outputs)) * (8 + 1 + chainhash.AddressSize)
	return size
}

// Add admits tx at the given already-validated fee. The caller (the
// ledger engine) is responsible for having verified tx and reserved its
// inputs against the UTXO set before calling Add, and for releasing
// those reservations for every id returned in evicted.
func (mp *Mempool) Add(tx block.Transaction, fee uint64) (evicted []chainhash.ChainHash, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.entries[tx.ID]; exists {
		return nil, fmt.Errorf("mempool: transaction %s already pooled", tx.ID)
	}

	size := transactionSize(tx)
	feeRate := uint64(0)
	if size > 0 {
		feeRate = fee / size
	}
	if feeRate < mp.config.MinFeeRate {
		return nil, fmt.Errorf("mempool: fee rate %d below minimum %d", feeRate, mp.config.MinFeeRate)
	}

	if mp.size+size > mp.config.MaxSize {
		freed, ok := mp.evictFor(mp.size+size-mp.config.MaxSize, feeRate)
		if !ok {
			return nil, fmt.Errorf("mempool: full, cannot evict enough to admit %d bytes", size)
		}
		evicted = freed
	}

	e := &entry{tx: tx, fee: fee, size: size, feeRate: feeRate, addedAt: time.Now()}
	mp.entries[tx.ID] = e
	mp.size += size
	heap.Push(&mp.byFee, e)
	return evicted, nil
}

// evictFor pops the lowest-fee-rate entries until at least `needed` bytes
// are freed, refusing to evict anything at or above newFeeRate (so a
// low-fee transaction can never bump a higher-fee one). Caller must hold
// mp.mu.
func (mp *Mempool) evictFor(needed uint64, newFeeRate uint64) ([]chainhash.ChainHash, bool) {
	freed := uint64(0)
	var evictedIDs []chainhash.ChainHash
	var evictedEntries []*entry

	for mp.byFee.Len() > 0 && freed < needed {
		minIdx := 0
		for i := 1; i < mp.byFee.Len(); i++ {
			if mp.byFee[i].feeRate < mp.byFee[minIdx].feeRate {
				minIdx = i
			}
		}
		victim := mp.byFee[minIdx]
		if victim.feeRate >= newFeeRate {
			break
		}
		heap.Remove(&mp.byFee, minIdx)
		delete(mp.entries, victim.tx.ID)
		mp.size -= victim.size
		freed += victim.size
		evictedEntries = append(evictedEntries, victim)
		evictedIDs = append(evictedIDs, victim.tx.ID)
	}
	if freed < needed {
		// roll back: re-insert every victim so a failed admission evicts
		// nothing; callers release reservations only for ids actually
		// returned, and none are returned here.
		for _, victim := range evictedEntries {
			mp.entries[victim.tx.ID] = victim
			mp.size += victim.size
			heap.Push(&mp.byFee, victim)
		}
		return nil, false
	}
	return evictedIDs, true
}

// Remove drops txID from the pool, if present. The caller is responsible
// for releasing any UTXO reservation txID held.
func (mp *Mempool) Remove(txID chainhash.ChainHash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeLocked(txID)
}

func (mp *Mempool) removeLocked(txID chainhash.ChainHash) {
	e, ok := mp.entries[txID]
	if !ok {
		return
	}
	delete(mp.entries, txID)
	mp.size -= e.size
	if e.index >= 0 && e.index < mp.byFee.Len() && mp.byFee[e.index] == e {
		heap.Remove(&mp.byFee, e.index)
	}
}

// Get returns the pooled transaction with the given id, if present.
func (mp *Mempool) Get(txID chainhash.ChainHash) (block.Transaction, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	e, ok := mp.entries[txID]
	if !ok {
		return block.Transaction{}, false
	}
	return e.tx, true
}

// Selected pairs a pooled transaction with the fee the engine computed
// for it when it was admitted, so MinePending doesn't need to re-derive
// fees from a UTXO set that may already reflect its own reservations.
type Selected struct {
	Tx  block.Transaction
	Fee uint64
}

// SelectForBlock returns pooled transactions in fee-rate-descending order
// up to maxSize total bytes, without removing them from the pool. The heap
// itself is left untouched: its entries carry live index bookkeeping, so
// ordering here works on a sorted copy of the slice instead.
func (mp *Mempool) SelectForBlock(maxSize uint64) []Selected {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	ordered := make([]*entry, len(mp.byFee))
	copy(ordered, mp.byFee)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].feeRate > ordered[j].feeRate })

	var selected []Selected
	used := uint64(0)
	for _, e := range ordered {
		if used+e.size > maxSize {
			continue
		}
		selected = append(selected, Selected{Tx: e.tx, Fee: e.fee})
		used += e.size
	}
	return selected
}

// RemoveMined drops every transaction in txIDs from the pool — called
// after a block is applied, for the transactions it included. The caller
// has already released their UTXO reservations via ApplyBlock's own UTXO
// mutation.
func (mp *Mempool) RemoveMined(txIDs []chainhash.ChainHash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, id := range txIDs {
		mp.removeLocked(id)
	}
}

// Len returns the number of pooled transactions.
func (mp *Mempool) Len() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.entries)
}

// Clear empties the pool and returns the ids it held, so the caller can
// release their UTXO reservations.
func (mp *Mempool) Clear() []chainhash.ChainHash {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	ids := make([]chainhash.ChainHash, 0, len(mp.entries))
	for id := range mp.entries {
		ids = append(ids, id)
	}
	mp.entries = make(map[chainhash.ChainHash]*entry)
	mp.byFee = feeHeap{}
	mp.size = 0
	return ids
}
