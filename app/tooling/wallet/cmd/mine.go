package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

// mineCmd mines a single block from whatever is pending. The running
// service mines automatically, this exists for offline operation.
var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine one block from the pending pool",
	Run:   mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
}

func mineRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	if _, err := st.Reconcile(); err != nil {
		log.Fatal(err)
	}

	block, err := st.MineNewBlock(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	printJSON(block)
}
