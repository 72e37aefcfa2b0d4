package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var txID string

// verifyCmd runs the full verification pipeline. With no id the most
// recently created transaction is verified.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify and settle a signed transaction",
	Run:   verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&txID, "id", "i", "", "Transaction id, defaults to the latest transaction.")
}

func verifyRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	printJSON(st.VerifyTransaction(txID))
}
