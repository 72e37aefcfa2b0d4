package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Print transactions, optionally filtered by account",
	Run:   transactionsRun,
}

func init() {
	rootCmd.AddCommand(transactionsCmd)
	transactionsCmd.Flags().StringVarP(&accountName, "name", "n", "", "Limit to transactions sent or received by this account.")
}

func transactionsRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	if accountName != "" {
		txs, err := st.QueryTransactionHistory(accountName)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(txs)
		return
	}

	txs, err := st.ListTransactions()
	if err != nil {
		log.Fatal(err)
	}
	printJSON(txs)
}
