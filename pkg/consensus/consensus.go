// Package consensus wraps the block package's proof-of-work and timestamp
// checks behind a small policy object. Dynamic difficulty retargeting,
// finality depth, and checkpoints are deliberately absent: Bits is a fixed
// policy value, not something this package adjusts.
package consensus

import (
	"fmt"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
)

// Config holds the fixed consensus parameters.
type Config struct {
	// Bits is the number of required leading zero bits every block's
	// header hash must satisfy.
	Bits uint32
}

// DefaultConfig returns a conservative starting configuration, cheap
// enough to mine in tests and demos.
func DefaultConfig() Config {
	return Config{Bits: 8}
}

// Consensus holds the fixed policy and exposes the checks the ledger
// engine runs against every incoming block.
type Consensus struct {
	mu     sync.RWMutex
	config Config
}

// New creates a Consensus with the given configuration.
func New(config Config) *Consensus {
	return &Consensus{config: config}
}

// Bits returns the configured difficulty bits.
func (c *Consensus) Bits() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Bits
}

// Target returns the difficulty target a header hash must not exceed.
func (c *Consensus) Target() chainhash.ChainHash {
	return chainhash.TargetFromBits(c.Bits())
}

// ValidateProofOfWork checks b's header hash against the configured bits,
// rejecting blocks mined against a different difficulty than this policy
// requires.
func (c *Consensus) ValidateProofOfWork(b block.Block) error {
	if b.Header.Bits != c.Bits() {
		return fmt.Errorf("consensus: block bits %d does not match required %d", b.Header.Bits, c.Bits())
	}
	return block.ValidateProofOfWork(b)
}

// ValidateTimestamp rejects blocks whose timestamp is implausibly far in
// the future relative to now.
func (c *Consensus) ValidateTimestamp(b block.Block, now time.Time) error {
	return block.VerifyTimestampPlausibility(b, now)
}

// ValidateHeader runs every header-level consensus check: proof of work
// and timestamp plausibility. Merkle root and per-transaction checks live
// in the block and ledger packages, which have the data they need.
func (c *Consensus) ValidateHeader(b block.Block, now time.Time) error {
	if err := c.ValidateTimestamp(b, now); err != nil {
		return err
	}
	return c.ValidateProofOfWork(b)
}
