package mempool

import (
	"testing"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/gochain/gochain/pkg/keys"
	"github.com/gochain/gochain/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T, seed byte, fee uint64) block.Transaction {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)

	draft := block.Draft(
		[]block.DraftInput{{PrevTxID: chainhash.ChainHash{seed}, PrevVout: 0}},
		[]block.Output{{Value: 1000, ScriptPubKey: script.NewPayToPubKeyHash(kp.Address())}},
		uint64(seed),
	)
	return block.Sign(draft, kp)
}

func TestAddAndGet(t *testing.T) {
	mp := New(DefaultConfig())
	tx := testTx(t, 1, 1000)

	evicted, err := mp.Add(tx, 1000)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	got, ok := mp.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, 1, mp.Len())
}

func TestAddRejectsDuplicate(t *testing.T) {
	mp := New(DefaultConfig())
	tx := testTx(t, 1, 1000)

	_, err := mp.Add(tx, 1000)
	require.NoError(t, err)

	_, err = mp.Add(tx, 1000)
	assert.Error(t, err)
}

func TestAddRejectsBelowMinFeeRate(t *testing.T) {
	mp := New(Config{MaxSize: 10_000_000, MinFeeRate: 1000})
	tx := testTx(t, 1, 1)

	_, err := mp.Add(tx, 1)
	assert.Error(t, err)
}

func TestSelectForBlockOrdersByFeeRateDescending(t *testing.T) {
	mp := New(DefaultConfig())
	low := testTx(t, 1, 1000)
	high := testTx(t, 2, 10000)

	_, err := mp.Add(low, 1000)
	require.NoError(t, err)
	_, err = mp.Add(high, 10000)
	require.NoError(t, err)

	selected := mp.SelectForBlock(1 << 20)
	require.Len(t, selected, 2)
	assert.Equal(t, high.ID, selected[0].Tx.ID)
	assert.Equal(t, low.ID, selected[1].Tx.ID)
}

func TestSelectForBlockRespectsSizeBudget(t *testing.T) {
	mp := New(DefaultConfig())
	tx1 := testTx(t, 1, 1000)
	tx2 := testTx(t, 2, 1000)

	_, err := mp.Add(tx1, 1000)
	require.NoError(t, err)
	_, err = mp.Add(tx2, 1000)
	require.NoError(t, err)

	selected := mp.SelectForBlock(transactionSize(tx1))
	require.Len(t, selected, 1)
}

func TestRemoveMinedDropsEntries(t *testing.T) {
	mp := New(DefaultConfig())
	tx := testTx(t, 1, 1000)
	_, err := mp.Add(tx, 1000)
	require.NoError(t, err)

	mp.RemoveMined([]chainhash.ChainHash{tx.ID})
	_, ok := mp.Get(tx.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, mp.Len())
}

func TestRemoveDropsSingleEntry(t *testing.T) {
	mp := New(DefaultConfig())
	tx := testTx(t, 1, 1000)
	_, err := mp.Add(tx, 1000)
	require.NoError(t, err)

	mp.Remove(tx.ID)
	_, ok := mp.Get(tx.ID)
	assert.False(t, ok)
}

func TestEvictionFreesSpaceForHigherFeeTransaction(t *testing.T) {
	tx1 := testTx(t, 1, 10)
	tx2 := testTx(t, 2, 100000)
	// Signature lengths vary by a byte or two, so the pool is sized to hold
	// either transaction alone but never both.
	size := transactionSize(tx1)
	if s2 := transactionSize(tx2); s2 > size {
		size = s2
	}
	mp := New(Config{MaxSize: size, MinFeeRate: 0})

	evicted, err := mp.Add(tx1, 10)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	evicted, err = mp.Add(tx2, 100000)
	require.NoError(t, err)
	require.Equal(t, []chainhash.ChainHash{tx1.ID}, evicted)

	_, ok := mp.Get(tx1.ID)
	assert.False(t, ok)
	_, ok = mp.Get(tx2.ID)
	assert.True(t, ok)
}

func TestEvictionRefusesToBumpHigherFeeTransaction(t *testing.T) {
	tx1 := testTx(t, 1, 100000)
	size := transactionSize(tx1)
	mp := New(Config{MaxSize: size, MinFeeRate: 0})

	_, err := mp.Add(tx1, 100000)
	require.NoError(t, err)

	tx2 := testTx(t, 2, 10)
	_, err = mp.Add(tx2, 10)
	assert.Error(t, err)
}

func TestClearReturnsHeldIDs(t *testing.T) {
	mp := New(DefaultConfig())
	tx1 := testTx(t, 1, 1000)
	tx2 := testTx(t, 2, 1000)
	_, err := mp.Add(tx1, 1000)
	require.NoError(t, err)
	_, err = mp.Add(tx2, 1000)
	require.NoError(t, err)

	ids := mp.Clear()
	assert.ElementsMatch(t, []chainhash.ChainHash{tx1.ID, tx2.ID}, ids)
	assert.Equal(t, 0, mp.Len())
}
