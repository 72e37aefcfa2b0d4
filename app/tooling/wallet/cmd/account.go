package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	accountName    string
	passphrase     string
	initialBalance uint64
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage ledger accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account with a fresh keypair",
	Run:   accountCreateRun,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the account record",
	Run:   accountShowRun,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every account",
	Run:   accountListRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd, accountShowCmd, accountListCmd)

	accountCmd.PersistentFlags().StringVarP(&accountName, "name", "n", "", "Account name.")

	accountCreateCmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "Passphrase protecting the private key.")
	accountCreateCmd.Flags().Uint64VarP(&initialBalance, "balance", "b", 0, "Opening balance for the account.")
}

func accountCreateRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	account, err := st.CreateAccount(accountName, passphrase, initialBalance)
	if err != nil {
		log.Fatal(err)
	}

	printJSON(account)
}

func accountShowRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	account, err := st.GetAccount(accountName)
	if err != nil {
		log.Fatal(err)
	}

	printJSON(account)
}

func accountListRun(cmd *cobra.Command, args []string) {
	st, err := newState()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Shutdown()

	accounts, err := st.ListAccounts()
	if err != nil {
		log.Fatal(err)
	}

	printJSON(accounts)
}
