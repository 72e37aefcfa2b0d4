package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print chain, account and transaction statistics",
	Run:   statsRun,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func statsRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	chain, err := st.QueryChainStats()
	if err != nil {
		log.Fatal(err)
	}

	accounts, err := st.QueryAccountStats()
	if err != nil {
		log.Fatal(err)
	}

	txs, err := st.QueryTransactionStats()
	if err != nil {
		log.Fatal(err)
	}

	printJSON(struct {
		Chain        any `json:"chain"`
		Accounts     any `json:"accounts"`
		Transactions any `json:"transactions"`
	}{chain, accounts, txs})
}
