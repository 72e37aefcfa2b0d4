package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	from   string
	to     string
	amount uint64
)

// sendCmd creates and signs a transfer in one step. The transaction still
// needs to be verified before it settles.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Create and sign a transfer",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&from, "from", "f", "", "Sending account name.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Receiving account name.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "a", 0, "Amount to transfer.")
	sendCmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "Passphrase for the sender's private key.")
}

func sendRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	tx, err := st.CreateTransaction(from, to, amount)
	if err != nil {
		log.Fatal(err)
	}

	tx, err = st.SignTransaction(tx.ID, from, passphrase)
	if err != nil {
		log.Fatal(err)
	}

	printJSON(tx)
}
