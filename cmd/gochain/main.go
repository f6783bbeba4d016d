// Command gochain is the thin CLI that wires the ledger core together: a
// badger-backed block store, a ledger engine, and a ticking miner. It owns
// none of the core's invariants — every subcommand is a direct call
// through the embedder-facing API described by the ledger package.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gochain/gochain/pkg/block"
	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/gochain/gochain/pkg/consensus"
	"github.com/gochain/gochain/pkg/keys"
	"github.com/gochain/gochain/pkg/ledger"
	"github.com/gochain/gochain/pkg/logger"
	"github.com/gochain/gochain/pkg/mempool"
	"github.com/gochain/gochain/pkg/miner"
	"github.com/gochain/gochain/pkg/script"
	"github.com/gochain/gochain/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile   string
	dataDir      string
	bits         uint32
	minerKeyFile string
	mineForever  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gochain",
		Short: "gochain - a UTXO-model blockchain ledger engine",
		Long: `gochain is the core of a UTXO-model blockchain node: transaction and
block validation, a UTXO set with mempool reservations, and a persistent
block store, wired together behind a small CLI.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "block store directory (default ./data)")
	rootCmd.PersistentFlags().Uint32Var(&bits, "bits", 0, "proof-of-work difficulty, leading zero bits (default 8)")
	rootCmd.PersistentFlags().StringVar(&minerKeyFile, "miner-key-file", "", "path to the local miner's private key (default ./miner.key)")

	rootCmd.AddCommand(
		newInfoCmd(),
		newBlocksCmd(),
		newUTXOsCmd(),
		newMineCmd(),
		newSubmitTxCmd(),
		newKeygenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config (or ./config.yaml) and environment overrides
// into viper, tolerating a missing config file.
func loadConfig() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if v := viper.GetString("storage.data_dir"); v != "" {
		return v
	}
	return "./data"
}

func resolveBits() uint32 {
	if bits != 0 {
		return bits
	}
	if v := viper.GetUint32("consensus.bits"); v != 0 {
		return v
	}
	return 8
}

func resolveMinerKeyFile() string {
	if minerKeyFile != "" {
		return minerKeyFile
	}
	if v := viper.GetString("miner.key_file"); v != "" {
		return v
	}
	return "./miner.key"
}

func setupLogger() *logger.Logger {
	logLevel := logger.INFO
	switch strings.ToLower(viper.GetString("logging.level")) {
	case "debug":
		logLevel = logger.DEBUG
	case "warn":
		logLevel = logger.WARN
	case "error":
		logLevel = logger.ERROR
	}
	return logger.NewLogger(&logger.Config{
		Level:  logLevel,
		Prefix: "gochain",
	})
}

// loadOrCreateMinerKey reads a 32-byte private key from path, generating
// and persisting a fresh one if the file does not exist. Keys are stored
// raw, unencrypted: at-rest key encryption is out of scope for this core.
func loadOrCreateMinerKey(path string) (*keys.KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return keys.FromPrivateKeyBytes(raw)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read miner key: %w", err)
	}

	kp, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate miner key: %w", err)
	}
	if err := os.WriteFile(path, kp.PrivateKeyBytes(), 0o600); err != nil {
		return nil, fmt.Errorf("persist miner key: %w", err)
	}
	return kp, nil
}

// openEngine wires storage, consensus, mempool, and the ledger engine
// together, the same sequence every subcommand needs.
func openEngine() (*ledger.Engine, func(), error) {
	if err := loadConfig(); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(storage.Config{DataDir: resolveDataDir()})
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	minerKey, err := loadOrCreateMinerKey(resolveMinerKeyFile())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	log := setupLogger()
	eng := ledger.New(store, ledger.Config{
		MinerAddr: minerKey.Address(),
		Consensus: consensus.Config{Bits: resolveBits()},
		Mempool:   mempool.DefaultConfig(),
		Logger:    log,
	})
	if err := eng.Init(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("init ledger: %w", err)
	}

	return eng, func() { store.Close() }, nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "print tip height, mempool size, and UTXO count",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			stats := eng.Stats()
			fmt.Printf("tip height: %d\n", stats.TipHeight)
			fmt.Printf("tip hash:   %s\n", stats.TipHash)
			fmt.Printf("mempool:    %d transactions\n", stats.MempoolN)
			fmt.Printf("utxos:      %d\n", stats.UTXOCount)
			return nil
		},
	}
}

func newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "list every block in height order",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			blocks, err := eng.ListBlocks()
			if err != nil {
				return err
			}
			for _, b := range blocks {
				fmt.Printf("%6d  %s  %d tx\n", b.Header.Height, b.Hash, len(b.Transactions))
			}
			return nil
		},
	}
}

func newUTXOsCmd() *cobra.Command {
	var addrHex string
	cmd := &cobra.Command{
		Use:   "utxos",
		Short: "list spendable UTXOs for an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrBytes, err := hex.DecodeString(addrHex)
			if err != nil {
				return fmt.Errorf("invalid --address: %w", err)
			}
			addr, err := chainhash.NewAddressHash(addrBytes)
			if err != nil {
				return err
			}

			eng, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			for _, u := range eng.ListUTXOsByAddress(addr) {
				fmt.Printf("%s:%d  %d\n", u.OutPoint.TxID, u.OutPoint.Vout, u.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addrHex, "address", "", "hex-encoded 20-byte address hash")
	cmd.MarkFlagRequired("address")
	return cmd
}

func newMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "drain the mempool and mine a single block, or mine continuously with --forever",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			log := setupLogger()
			m := miner.New(eng, miner.Config{MiningEnabled: true, BlockInterval: 10 * time.Second}, log)
			m.SetOnBlockMined(func(stats ledger.Stats) {
				fmt.Printf("mined block %d (%s)\n", stats.TipHeight, stats.TipHash)
			})

			if !mineForever {
				return m.MineOnce()
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			if err := m.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			m.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&mineForever, "forever", false, "keep mining on a ticker until interrupted")
	return cmd
}

func newSubmitTxCmd() *cobra.Command {
	var (
		keyFile string
		inputs  []string
		outputs []string
	)
	cmd := &cobra.Command{
		Use:   "submit-tx",
		Short: "sign and submit a transaction spending named outpoints to named addresses",
		Long: `Builds a draft transaction from --input txid:vout pairs and
--output address:value pairs, signs it with --key-file, and submits it to
the mempool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --input is required")
			}
			if len(outputs) == 0 {
				return fmt.Errorf("at least one --output is required")
			}

			draftInputs, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			draftOutputs, err := parseOutputs(outputs)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("read key file: %w", err)
			}
			kp, err := keys.FromPrivateKeyBytes(raw)
			if err != nil {
				return err
			}

			draft := block.Draft(draftInputs, draftOutputs, uint64(time.Now().UnixMilli()))
			signed := block.Sign(draft, kp)

			eng, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			id, err := eng.SubmitTransaction(signed)
			if err != nil {
				return err
			}
			fmt.Printf("submitted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "path to the signer's private key")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "prev_txid:prev_vout, repeatable")
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "address_hex:value, repeatable")
	cmd.MarkFlagRequired("key-file")
	return cmd
}

func parseInputs(raw []string) ([]block.DraftInput, error) {
	out := make([]block.DraftInput, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad --input %q: want prev_txid:prev_vout", s)
		}
		txidBytes, err := hex.DecodeString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad --input %q: %w", s, err)
		}
		txid, err := chainhash.NewChainHash(txidBytes)
		if err != nil {
			return nil, err
		}
		vout, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad --input %q: %w", s, err)
		}
		out = append(out, block.DraftInput{PrevTxID: txid, PrevVout: uint32(vout)})
	}
	return out, nil
}

func parseOutputs(raw []string) ([]block.Output, error) {
	out := make([]block.Output, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad --output %q: want address_hex:value", s)
		}
		addrBytes, err := hex.DecodeString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad --output %q: %w", s, err)
		}
		addr, err := chainhash.NewAddressHash(addrBytes)
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --output %q: %w", s, err)
		}
		out = append(out, block.Output{Value: value, ScriptPubKey: script.NewPayToPubKeyHash(addr)})
	}
	return out, nil
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a new key pair, print its address, and optionally persist the private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keys.Generate()
			if err != nil {
				return err
			}
			fmt.Printf("address: %s\n", kp.Address())
			if out == "" {
				return nil
			}
			if err := os.WriteFile(out, kp.PrivateKeyBytes(), 0o600); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			fmt.Printf("private key written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path to write the raw 32-byte private key (unencrypted)")
	return cmd
}
