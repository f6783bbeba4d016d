package chainhash

import (
	"crypto/sha256"
	"errors"
)

// ErrEmptyLeaves is returned by MerkleRoot when given no leaves; a block
// must always have at least its coinbase transaction.
var ErrEmptyLeaves = errors.New("chainhash: cannot compute merkle root of an empty leaf set")

// MerkleRoot computes the Bitcoin-style Merkle root over leaves (normally
// transaction ids). An odd level duplicates its last hash before pairing.
// Pair-hashing is a single SHA-256, not double — only the leaves
// themselves (transaction ids) are double-hashed, by their own
// definition.
func MerkleRoot(leaves []ChainHash) (ChainHash, error) {
	if len(leaves) == 0 {
		return ChainHash{}, ErrEmptyLeaves
	}

	level := make([]ChainHash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]ChainHash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var buf [2 * HashSize]byte
			copy(buf[:HashSize], level[i][:])
			copy(buf[HashSize:], level[i+1][:])
			next[i/2] = sha256.Sum256(buf[:])
		}
		level = next
	}

	return level[0], nil
}
