// Package miner drives the ledger engine's single-shot block assembly on a
// schedule. It owns no proof-of-work or coinbase-construction logic of its
// own: mining itself (nonce search, coinbase sizing, fee collection)
// belongs entirely to ledger.Engine.MinePending, and this package only
// decides when to call it.
package miner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gochain/gochain/pkg/ledger"
	"github.com/gochain/gochain/pkg/logger"
)

// Config configures the miner's scheduling behavior.
type Config struct {
	MiningEnabled bool
	BlockInterval time.Duration
}

// DefaultConfig returns a conservative starting configuration.
func DefaultConfig() Config {
	return Config{MiningEnabled: false, BlockInterval: 10 * time.Second}
}

// OnBlockMinedFunc is invoked after every successful MinePending call.
type OnBlockMinedFunc func(stats ledger.Stats)

// Miner periodically calls Engine.MinePending on a ticker. It holds no
// chain state of its own.
type Miner struct {
	mu      sync.Mutex
	engine  *ledger.Engine
	config  Config
	log     *logger.Logger
	onMined OnBlockMinedFunc
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Miner around engine.
func New(engine *ledger.Engine, config Config, log *logger.Logger) *Miner {
	if log == nil {
		log = logger.NewLogger(logger.DefaultConfig())
	}
	return &Miner{engine: engine, config: config, log: log}
}

// SetOnBlockMined registers a callback invoked after every block this
// miner successfully mines.
func (m *Miner) SetOnBlockMined(fn OnBlockMinedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMined = fn
}

// MineOnce drains the mempool and mines a single block, the same
// operation the CLI's `mine` subcommand triggers directly.
func (m *Miner) MineOnce() error {
	if err := m.engine.MinePending(); err != nil {
		return fmt.Errorf("miner: mine once: %w", err)
	}
	m.mu.Lock()
	cb := m.onMined
	m.mu.Unlock()
	if cb != nil {
		cb(m.engine.Stats())
	}
	return nil
}

// Start begins mining on a ticker, at Config.BlockInterval, until Stop is
// called or ctx is cancelled. It is a no-op if MiningEnabled is false, and
// returns an error if the miner is already running.
func (m *Miner) Start(ctx context.Context) error {
	m.mu.Lock()
	if !m.config.MiningEnabled {
		m.mu.Unlock()
		return nil
	}
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("miner: already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
	return nil
}

// Stop halts a running mining loop and waits for it to exit.
func (m *Miner) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// IsRunning reports whether the miner has been started and not yet
// stopped with Stop. A loop that exited because its context was cancelled
// still counts as running until Stop is called.
func (m *Miner) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Miner) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.MineOnce(); err != nil {
				m.log.Error("mining tick failed: %v", err)
			}
		}
	}
}
