package miner

import (
	"context"
	"testing"
	"time"

	"github.com/gochain/gochain/pkg/consensus"
	"github.com/gochain/gochain/pkg/keys"
	"github.com/gochain/gochain/pkg/ledger"
	"github.com/gochain/gochain/pkg/mempool"
	"github.com/gochain/gochain/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	store, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kp, err := keys.Generate()
	require.NoError(t, err)

	eng := ledger.New(store, ledger.Config{
		MinerAddr: kp.Address(),
		Consensus: consensus.Config{Bits: 4},
		Mempool:   mempool.DefaultConfig(),
	})
	require.NoError(t, eng.Init())
	return eng
}

func TestMineOnceAdvancesTip(t *testing.T) {
	eng := newTestEngine(t)
	m := New(eng, DefaultConfig(), nil)

	var mined bool
	m.SetOnBlockMined(func(stats ledger.Stats) { mined = true })

	require.NoError(t, m.MineOnce())
	assert.True(t, mined)
	assert.Equal(t, uint64(1), eng.Stats().TipHeight)
}

func TestStartStopRunsOnTicker(t *testing.T) {
	eng := newTestEngine(t)
	m := New(eng, Config{MiningEnabled: true, BlockInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx))
	assert.True(t, m.IsRunning())

	require.Eventually(t, func() bool {
		return eng.Stats().TipHeight >= 1
	}, time.Second, 10*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestStartNoOpWhenDisabled(t *testing.T) {
	eng := newTestEngine(t)
	m := New(eng, Config{MiningEnabled: false}, nil)

	require.NoError(t, m.Start(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestStartTwiceErrors(t *testing.T) {
	eng := newTestEngine(t)
	m := New(eng, Config{MiningEnabled: true, BlockInterval: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	assert.Error(t, m.Start(ctx))
}
