package block

import (
	"time"

	"github.com/gochain/gochain/pkg/chainhash"
)

// GenesisTimestampMillis is the Bitcoin genesis block's Unix timestamp
// (1231006505) expressed in milliseconds.
const GenesisTimestampMillis uint64 = 1231006505 * 1000

// FutureTimestampTolerance is how far past the validator's clock a block's
// timestamp may sit before it is rejected.
const FutureTimestampTolerance = 2 * time.Hour

// Header carries every field that is hashed to produce a block's identity.
// Transaction bodies are committed via MerkleRoot, not hashed directly.
type Header struct {
	Height        uint64
	Timestamp     uint64 // milliseconds since epoch
	PrevBlockHash chainhash.ChainHash
	MerkleRoot    chainhash.ChainHash
	Bits          uint32
	Nonce         uint64
}

// Block is a header, its transactions, and the header's own hash.
type Block struct {
	Header       Header
	Transactions []Transaction
	Hash         chainhash.ChainHash
}

// OutPoint identifies a specific output of a specific transaction.
type OutPoint struct {
	TxID chainhash.ChainHash
	Vout uint32
}

// UTXOAddition pairs an outpoint with the output it now refers to.
type UTXOAddition struct {
	OutPoint OutPoint
	Output   Output
}

// ComputeMerkleRoot builds the Merkle root over a block's transaction ids.
// An empty transaction list is always an error — every block, genesis
// included, carries at least its coinbase.
func ComputeMerkleRoot(txs []Transaction) (chainhash.ChainHash, error) {
	if len(txs) == 0 {
		return chainhash.ChainHash{}, ErrEmptyTransactions
	}
	ids := make([]chainhash.ChainHash, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return chainhash.MerkleRoot(ids)
}

// HeaderHash computes double_sha256(encode({height, timestamp,
// prev_block_hash, merkle_root, bits, nonce})). Transaction bodies are
// never part of this hash; they are committed via MerkleRoot.
func HeaderHash(h Header) chainhash.ChainHash {
	enc := chainhash.NewEncoder()
	enc.PutUint64(h.Height)
	enc.PutUint128(h.Timestamp, 0)
	enc.PutFixed(h.PrevBlockHash[:])
	enc.PutFixed(h.MerkleRoot[:])
	enc.PutUint32(h.Bits)
	enc.PutUint64(h.Nonce)
	return enc.Hash()
}

// VerifyMerkleRoot recomputes the Merkle root over b.Transactions and
// checks it against b.Header.MerkleRoot.
func VerifyMerkleRoot(b Block) error {
	computed, err := ComputeMerkleRoot(b.Transactions)
	if err != nil {
		return err
	}
	if computed != b.Header.MerkleRoot {
		return ErrMerkleMismatch
	}
	return nil
}

// VerifyTimestampPlausibility rejects blocks whose timestamp is more than
// FutureTimestampTolerance ahead of now. There is no lower bound.
func VerifyTimestampPlausibility(b Block, now time.Time) error {
	limit := now.Add(FutureTimestampTolerance).UnixMilli()
	if int64(b.Header.Timestamp) > limit {
		return ErrTimestampTooFarFuture
	}
	return nil
}

// ValidateProofOfWork recomputes the header hash, checks it matches
// b.Hash, is non-zero, and is less than or equal to the difficulty target
// for b.Header.Bits.
func ValidateProofOfWork(b Block) error {
	recomputed := HeaderHash(b.Header)
	if recomputed != b.Hash {
		return ErrHeaderHashMismatch
	}
	if b.Hash.IsZero() {
		return ErrZeroHash
	}
	target := chainhash.TargetFromBits(b.Header.Bits)
	if !b.Hash.LessOrEqual(target) {
		return ErrProofOfWork
	}
	return nil
}

// Validate runs every header- and shape-level invariant: non-empty
// transactions, a coinbase first transaction, a matching Merkle root, a
// plausible timestamp, and valid proof of work. Per-transaction
// signature/UTXO validation is the ledger engine's job, not this
// package's — it needs the UTXO set.
func Validate(b Block, now time.Time) error {
	if len(b.Transactions) == 0 {
		return ErrEmptyTransactions
	}
	if !IsCoinbase(b.Transactions[0]) {
		return ErrNotCoinbase
	}
	if err := VerifyMerkleRoot(b); err != nil {
		return err
	}
	if err := VerifyTimestampPlausibility(b, now); err != nil {
		return err
	}
	if err := ValidateProofOfWork(b); err != nil {
		return err
	}
	return nil
}

// UTXOAdditions returns, for every transaction and every one of its
// outputs, the (outpoint, output) pair that should be inserted into the
// UTXO set when this block applies.
func UTXOAdditions(b Block) []UTXOAddition {
	var additions []UTXOAddition
	for _, tx := range b.Transactions {
		for i, out := range tx.Outputs {
			additions = append(additions, UTXOAddition{
				OutPoint: OutPoint{TxID: tx.ID, Vout: uint32(i)},
				Output:   out,
			})
		}
	}
	return additions
}

// UTXORemovals returns, for every non-coinbase transaction's input, the
// outpoint it spends and that must be removed from the UTXO set.
func UTXORemovals(b Block) []OutPoint {
	var removals []OutPoint
	for i, tx := range b.Transactions {
		if i == 0 {
			continue // coinbase spends nothing
		}
		for _, in := range tx.Inputs {
			removals = append(removals, OutPoint{TxID: in.PrevTxID, Vout: in.PrevVout})
		}
	}
	return removals
}

// assembleHeader builds a Header with every field but Nonce filled in;
// Mine iterates Nonce from there, and Genesis keeps nonce 0.
func assembleHeader(height uint64, timestampMillis uint64, prevHash chainhash.ChainHash, merkleRoot chainhash.ChainHash, bits uint32) Header {
	return Header{
		Height:        height,
		Timestamp:     timestampMillis,
		PrevBlockHash: prevHash,
		MerkleRoot:    merkleRoot,
		Bits:          bits,
		Nonce:         0,
	}
}

// Mine assembles a block from transactions and searches nonces starting
// at 0 until the header hash meets the difficulty target for bits. The
// timestamp is captured once, at the start. Callers that want cooperative
// cancellation should run Mine in their own goroutine; it performs no
// suspension itself.
func Mine(height uint64, transactions []Transaction, prevHash chainhash.ChainHash, bits uint32, nowMillis uint64) (Block, error) {
	merkleRoot, err := ComputeMerkleRoot(transactions)
	if err != nil {
		return Block{}, err
	}

	header := assembleHeader(height, nowMillis, prevHash, merkleRoot, bits)
	target := chainhash.TargetFromBits(bits)

	for nonce := uint64(0); ; nonce++ {
		header.Nonce = nonce
		hash := HeaderHash(header)
		if !hash.IsZero() && hash.LessOrEqual(target) {
			return Block{Header: header, Transactions: transactions, Hash: hash}, nil
		}
		if nonce == ^uint64(0) {
			break
		}
	}
	return Block{}, ErrProofOfWork
}

// Genesis constructs the deterministic genesis block: height 0, the fixed
// GenesisTimestampMillis, a zero previous hash, and a single coinbase
// transaction paying reward to minerAddr. Its hash is whatever the header
// encoding yields at nonce 0 — genesis is not required to meet bits.
func Genesis(minerAddr chainhash.AddressHash, reward uint64, bits uint32) Block {
	coinbaseTx := Coinbase(minerAddr, reward)
	txs := []Transaction{coinbaseTx}
	merkleRoot, err := ComputeMerkleRoot(txs)
	if err != nil {
		// unreachable: txs always has exactly one element
		panic(err)
	}

	header := assembleHeader(0, GenesisTimestampMillis, chainhash.ChainHash{}, merkleRoot, bits)
	hash := HeaderHash(header)
	return Block{Header: header, Transactions: txs, Hash: hash}
}
