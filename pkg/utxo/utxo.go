// Package utxo tracks the set of unspent transaction outputs and the
// mempool's provisional reservations against it.
package utxo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
)

// ErrNotFound is returned when an outpoint has no corresponding output in
// the set, whether because it was never created or already spent.
var ErrNotFound = errors.New("utxo: output not found")

// OutputRecord pairs an output with the height of the block that created
// it, so callers can enforce coinbase maturity rules if they choose to.
type OutputRecord struct {
	Output block.Output
	Height uint64
}

// Set is the concurrency-safe store of unspent outputs plus a parallel
// reservation set used by the mempool to prevent two pending transactions
// from spending the same output before either is mined.
type Set struct {
	mu       sync.RWMutex
	outputs  map[block.OutPoint]OutputRecord
	reserved map[block.OutPoint]chainhash.ChainHash // outpoint -> reserving tx id
}

// New creates an empty UTXO set.
func New() *Set {
	return &Set{
		outputs:  make(map[block.OutPoint]OutputRecord),
		reserved: make(map[block.OutPoint]chainhash.ChainHash),
	}
}

// Get returns the output at outpoint, if it is currently unspent.
func (s *Set) Get(op block.OutPoint) (block.Output, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.outputs[op]
	return rec.Output, ok
}

// Insert adds a new unspent output at the given height. It overwrites any
// existing record at the same outpoint — callers are responsible for not
// double-inserting.
func (s *Set) Insert(op block.OutPoint, out block.Output, height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[op] = OutputRecord{Output: out, Height: height}
}

// Remove deletes the output at outpoint and clears any reservation against
// it. It is not an error to remove an outpoint that does not exist.
func (s *Set) Remove(op block.OutPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outputs, op)
	delete(s.reserved, op)
}

// Clear empties both the output set and the reservation set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = make(map[block.OutPoint]OutputRecord)
	s.reserved = make(map[block.OutPoint]chainhash.ChainHash)
}

// Len returns the number of unspent outputs currently tracked.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outputs)
}

// Reserve marks every outpoint an input set depends on as provisionally
// spent by txID. It fails atomically: if any outpoint is missing or
// already reserved by a different transaction, no reservation is applied.
func (s *Set) Reserve(txID chainhash.ChainHash, ops []block.OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if _, ok := s.outputs[op]; !ok {
			return fmt.Errorf("utxo: reserve %s: %w", txID, ErrNotFound)
		}
		if by, held := s.reserved[op]; held && by != txID {
			return fmt.Errorf("utxo: outpoint %s:%d already reserved by %s", op.TxID, op.Vout, by)
		}
	}
	for _, op := range ops {
		s.reserved[op] = txID
	}
	return nil
}

// Release drops every reservation txID holds among ops. Outpoints
// reserved by a different transaction are left untouched.
func (s *Set) Release(txID chainhash.ChainHash, ops []block.OutPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if by, ok := s.reserved[op]; ok && by == txID {
			delete(s.reserved, op)
		}
	}
}

// IsReserved reports whether op currently has a reservation against it,
// and by which transaction.
func (s *Set) IsReserved(op block.OutPoint) (chainhash.ChainHash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.reserved[op]
	return id, ok
}

// AddressUTXO is one spendable output belonging to a queried address.
type AddressUTXO struct {
	OutPoint block.OutPoint
	Value    uint64
	Height   uint64
}

// ByAddress scans the set for every unspent output locked to addr. This is
// a linear scan over the whole set — callers needing this on a hot path
// over a large set should maintain their own address index instead.
func (s *Set) ByAddress(addr chainhash.AddressHash) []AddressUTXO {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AddressUTXO
	for op, rec := range s.outputs {
		scriptAddr, err := rec.Output.ScriptPubKey.Address()
		if err != nil {
			continue
		}
		if scriptAddr == addr {
			out = append(out, AddressUTXO{OutPoint: op, Value: rec.Output.Value, Height: rec.Height})
		}
	}
	return out
}

// ApplyBlock inserts every output a block creates and removes every
// output it spends, and releases any reservations those spent outpoints
// held. Callers must already have validated the block; ApplyBlock does
// not re-check proof of work, signatures, or balances.
func (s *Set) ApplyBlock(b block.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range block.UTXORemovals(b) {
		delete(s.outputs, op)
		delete(s.reserved, op)
	}
	for _, add := range block.UTXOAdditions(b) {
		s.outputs[add.OutPoint] = OutputRecord{Output: add.Output, Height: b.Header.Height}
	}
}
