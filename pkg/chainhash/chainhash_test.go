package chainhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleSHA256IsDeterministic(t *testing.T) {
	a := DoubleSHA256([]byte("payload"))
	b := DoubleSHA256([]byte("payload"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, DoubleSHA256([]byte("payloae")))
}

func TestIsZero(t *testing.T) {
	assert.True(t, ChainHash{}.IsZero())
	assert.False(t, ChainHash{1}.IsZero())
}

func TestLessComparesBigEndian(t *testing.T) {
	low := ChainHash{0x00, 0x01}
	high := ChainHash{0x01, 0x00}

	assert.True(t, low.Less(high))
	assert.False(t, high.Less(low))
	assert.False(t, low.Less(low))
	assert.True(t, low.LessOrEqual(low))
	assert.True(t, low.LessOrEqual(high))
}

func TestNewChainHashRejectsWrongLength(t *testing.T) {
	_, err := NewChainHash(make([]byte, 31))
	assert.Error(t, err)

	h, err := NewChainHash(make([]byte, 32))
	require.NoError(t, err)
	assert.True(t, h.IsZero())
}

func TestNewAddressHashRejectsWrongLength(t *testing.T) {
	_, err := NewAddressHash(make([]byte, 19))
	assert.Error(t, err)

	_, err = NewAddressHash(make([]byte, 20))
	assert.NoError(t, err)
}

func TestEncoderProducesIdenticalBytesForIdenticalInput(t *testing.T) {
	build := func() []byte {
		enc := NewEncoder()
		enc.PutUint32(7)
		enc.PutUint64(42)
		enc.PutUint128(1700000000000, 0)
		enc.PutBytes([]byte("variable"))
		enc.PutFixed([]byte{0xAA, 0xBB})
		return enc.Bytes()
	}
	assert.Equal(t, build(), build())
}

func TestEncoderLengthPrefixDisambiguates(t *testing.T) {
	a := NewEncoder()
	a.PutBytes([]byte("ab")).PutBytes([]byte("c"))

	b := NewEncoder()
	b.PutBytes([]byte("a")).PutBytes([]byte("bc"))

	assert.NotEqual(t, a.Bytes(), b.Bytes())
}

func leaves(n int) []ChainHash {
	out := make([]ChainHash, n)
	for i := range out {
		out[i] = DoubleSHA256([]byte{byte(i)})
	}
	return out
}

func TestMerkleRootRejectsEmpty(t *testing.T) {
	_, err := MerkleRoot(nil)
	assert.ErrorIs(t, err, ErrEmptyLeaves)
}

func TestMerkleRootSingleLeafIsTheLeaf(t *testing.T) {
	l := leaves(1)
	root, err := MerkleRoot(l)
	require.NoError(t, err)
	assert.Equal(t, l[0], root)
}

func TestMerkleRootIsStable(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 33} {
		l := leaves(n)
		r1, err := MerkleRoot(l)
		require.NoError(t, err)
		r2, err := MerkleRoot(l)
		require.NoError(t, err)
		assert.Equal(t, r1, r2, "n=%d", n)
	}
}

func TestMerkleRootChangesWhenLeavesSwap(t *testing.T) {
	l := leaves(4)
	r1, err := MerkleRoot(l)
	require.NoError(t, err)

	l[1], l[2] = l[2], l[1]
	r2, err := MerkleRoot(l)
	require.NoError(t, err)

	assert.NotEqual(t, r1, r2)
}

func TestMerkleRootDoesNotMutateInput(t *testing.T) {
	l := leaves(3)
	snapshot := make([]ChainHash, len(l))
	copy(snapshot, l)

	_, err := MerkleRoot(l)
	require.NoError(t, err)
	assert.Equal(t, snapshot, l)
}

func TestTargetFromBitsZeroIsAllOnes(t *testing.T) {
	target := TargetFromBits(0)
	for _, b := range target {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestTargetFromBitsClearsLeadingBits(t *testing.T) {
	target := TargetFromBits(12)
	assert.Equal(t, byte(0x00), target[0])
	assert.Equal(t, byte(0x0F), target[1])
	assert.Equal(t, byte(0xFF), target[2])
}

func TestTargetFromBitsSaturates(t *testing.T) {
	assert.True(t, TargetFromBits(256).IsZero())
	assert.True(t, TargetFromBits(1000).IsZero())
}

func TestTargetMonotoneInBits(t *testing.T) {
	prev := TargetFromBits(0)
	for bits := uint32(1); bits <= 64; bits++ {
		cur := TargetFromBits(bits)
		assert.True(t, cur.LessOrEqual(prev), "target for %d bits must not exceed target for %d", bits, bits-1)
		prev = cur
	}
}
