package state

import (
	"fmt"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// CreateAccount generates a signing keypair, encrypts the private key
// under the passphrase and persists the account with its opening balance.
// When no balance is specified and the genesis file seeds one for the
// name, the seed applies. The returned view never carries key material.
func (s *State) CreateAccount(name string, passphrase string, initialBalance uint64) (database.Account, error) {
	if initialBalance == 0 {
		if seeded, exists := s.genesis.Balances[name]; exists {
			initialBalance = seeded
		}
	}

	account, err := database.NewAccount(name, passphrase, initialBalance, s.genesis.KeyIterations)
	if err != nil {
		return database.Account{}, fmt.Errorf("new account: %w", err)
	}

	if err := s.db.CreateAccount(account); err != nil {
		return database.Account{}, err
	}

	s.evHandler("state: CreateAccount: name[%s] address[%s] balance[%d]", account.Name, account.Address, account.Balance)

	return account.Public(), nil
}

// GetAccount returns the redacted account record for the name.
func (s *State) GetAccount(name string) (database.Account, error) {
	account, err := s.db.GetAccount(name)
	if err != nil {
		return database.Account{}, err
	}

	return account.Public(), nil
}

// GetAccountByAddress returns the redacted account record for the address.
func (s *State) GetAccountByAddress(address string) (database.Account, error) {
	account, err := s.db.GetAccountByAddress(address)
	if err != nil {
		return database.Account{}, err
	}

	return account.Public(), nil
}

// ListAccounts returns the redacted records for every account.
func (s *State) ListAccounts() ([]database.Account, error) {
	accounts, err := s.db.ListAccounts()
	if err != nil {
		return nil, err
	}

	public := make([]database.Account, len(accounts))
	for i, account := range accounts {
		public[i] = account.Public()
	}

	return public, nil
}

// AccountStats summarizes the account table.
type AccountStats struct {
	TotalAccounts int    `json:"total_accounts"`
	TotalBalance  uint64 `json:"total_balance"`
	MaxNonce      uint64 `json:"max_nonce"`
}

// QueryAccountStats returns totals across every account.
func (s *State) QueryAccountStats() (AccountStats, error) {
	accounts, err := s.db.ListAccounts()
	if err != nil {
		return AccountStats{}, err
	}

	stats := AccountStats{TotalAccounts: len(accounts)}
	for _, account := range accounts {
		stats.TotalBalance += account.Balance
		if account.Nonce > stats.MaxNonce {
			stats.MaxNonce = account.Nonce
		}
	}

	return stats, nil
}
