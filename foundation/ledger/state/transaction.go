package state

import (
	"errors"
	"fmt"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/signature"
	"github.com/trong0x/vanledger/foundation/ledger/verify"
)

// ErrNotSignable is returned when a transaction is asked to be signed in
// a lifecycle state that doesn't allow it.
var ErrNotSignable = errors.New("transaction is not in a signable state")

// CreateTransaction builds an unsigned transfer between the two named
// accounts, persists it in pending state and then advances the sender's
// nonce. The pending row makes a crash between create and sign observable.
func (s *State) CreateTransaction(senderName string, receiverName string, amount uint64) (database.Tx, error) {
	sender, err := s.db.GetAccount(senderName)
	if err != nil {
		return database.Tx{}, err
	}

	receiver, err := s.db.GetAccount(receiverName)
	if err != nil {
		return database.Tx{}, err
	}

	tx, err := database.NewTx(sender, receiver, amount, s.genesis.TransactionTTL)
	if err != nil {
		return database.Tx{}, err
	}

	if err := s.db.SaveTx(tx); err != nil {
		return database.Tx{}, err
	}

	// The transaction is durably recorded, the counter can move now.
	if _, err := s.db.IncrementNonce(senderName); err != nil {
		return database.Tx{}, fmt.Errorf("increment nonce: %w", err)
	}

	s.evHandler("state: CreateTransaction: tx[%s]: %s -> %s amount[%d] nonce[%d]", tx.ID, tx.From, tx.To, tx.Amount, tx.NonceValue())

	return tx, nil
}

// SignTransaction decrypts the sender's signing key with the passphrase,
// signs the canonical payload and stores the signature. Once signed the
// transaction is immutable except for its status and executed flag.
func (s *State) SignTransaction(txID string, senderName string, passphrase string) (database.Tx, error) {
	tx, err := s.db.GetTx(txID)
	if err != nil {
		return database.Tx{}, err
	}

	if tx.Status != database.StatusPending || tx.Signature != "" {
		return database.Tx{}, fmt.Errorf("transaction %s status %q: %w", tx.ID, tx.Status, ErrNotSignable)
	}

	if tx.From != senderName {
		return database.Tx{}, fmt.Errorf("transaction %s belongs to %q not %q: %w", tx.ID, tx.From, senderName, database.ErrNotFound)
	}

	sender, err := s.db.GetAccount(senderName)
	if err != nil {
		return database.Tx{}, err
	}

	privateKey, err := sender.PrivateKey(passphrase, s.genesis.KeyIterations)
	if err != nil {
		return database.Tx{}, err
	}

	sig, err := signature.Sign(tx.SignPayload(), privateKey)
	if err != nil {
		return database.Tx{}, fmt.Errorf("sign transaction: %w", err)
	}

	tx.Signature = sig
	tx.Status = database.StatusSigned

	if err := s.db.SaveTx(tx); err != nil {
		return database.Tx{}, err
	}

	s.evHandler("state: SignTransaction: tx[%s]: signed", tx.ID)

	return tx, nil
}

// VerifyTransaction runs the verification pipeline for the transaction id,
// or the most recently created transaction when the id is empty. When the
// transaction verifies and executes it is handed to the mempool for
// inclusion in the next mined block.
func (s *State) VerifyTransaction(txID string) verify.Result {
	result := s.verifier.Verify(txID)

	if result.Valid {
		if tx, err := s.db.GetTx(result.TxID); err == nil {
			s.submitForMining(tx)
		}
	}

	return result
}

// GetTransaction returns the transaction record for the id.
func (s *State) GetTransaction(txID string) (database.Tx, error) {
	return s.db.GetTx(txID)
}

// ListTransactions returns every transaction in creation order.
func (s *State) ListTransactions() ([]database.Tx, error) {
	return s.db.ListTxs()
}

// QueryTransactionHistory returns the transactions the named account sent
// or received, in creation order.
func (s *State) QueryTransactionHistory(name string) ([]database.Tx, error) {
	all, err := s.db.ListTxs()
	if err != nil {
		return nil, err
	}

	var history []database.Tx
	for _, tx := range all {
		if tx.From == name || tx.To == name {
			history = append(history, tx)
		}
	}

	return history, nil
}

// TransactionStats summarizes the transaction table by lifecycle status.
type TransactionStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Signed   int `json:"signed"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
}

// QueryTransactionStats returns totals across every transaction.
func (s *State) QueryTransactionStats() (TransactionStats, error) {
	all, err := s.db.ListTxs()
	if err != nil {
		return TransactionStats{}, err
	}

	stats := TransactionStats{Total: len(all)}
	for _, tx := range all {
		switch tx.Status {
		case database.StatusPending:
			stats.Pending++
		case database.StatusSigned:
			stats.Signed++
		case database.StatusVerified:
			stats.Verified++
		case database.StatusRejected:
			stats.Rejected++
		}
	}

	return stats, nil
}

// submitForMining accepts a verified transaction into the pending pool and
// signals mining when the pool reaches the batch size.
func (s *State) submitForMining(tx database.Tx) {
	if tx.Status != database.StatusVerified {
		s.evHandler("state: submitForMining: tx[%s]: not verified, ignored", tx.ID)
		return
	}

	count := s.mempool.Upsert(tx)
	s.evHandler("state: submitForMining: tx[%s]: pooled: count[%d]", tx.ID, count)

	if count >= int(s.genesis.TransPerBlock) {
		s.signalStartMining()
	}
}
