// Package cmd contains the wallet commands for working with the ledger
// directly on disk.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trong0x/vanledger/foundation/ledger/genesis"
	"github.com/trong0x/vanledger/foundation/ledger/state"
)

var (
	dbPath       string
	genesisPath  string
	minerAddress string
	verbose      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "zledger/ledger.db", "Path to the ledger database.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zledger/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().StringVarP(&minerAddress, "miner", "m", "system", "Address credited with mining rewards.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print ledger events while running.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet for the value transfer ledger",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newState opens the ledger for a single command invocation. The caller
// owns the shutdown.
func newState() (*state.State, error) {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	ev := func(v string, args ...any) {}
	if verbose {
		ev = func(v string, args ...any) {
			fmt.Printf(v+"\n", args...)
		}
	}

	st, err := state.New(state.Config{
		Genesis:      gen,
		DBPath:       dbPath,
		MinerAddress: minerAddress,
		EvHandler:    ev,
	})
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return st, nil
}
