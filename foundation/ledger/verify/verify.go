// Package verify implements the multi-stage pipeline that gates every
// balance mutation: format, signature, balance and fraud checks followed
// by atomic execution.
package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/fraud"
	"github.com/trong0x/vanledger/foundation/ledger/signature"
	"github.com/trong0x/vanledger/foundation/validate"
)

// Final status values a verification run can report.
const (
	StatusNotFound = "not_found"
	StatusExecuted = "executed"
	StatusVerified = database.StatusVerified
	StatusRejected = database.StatusRejected
)

// Result is the structured outcome of one verification attempt.
type Result struct {
	Valid          bool   `json:"valid"`
	SignatureValid bool   `json:"signature_valid"`
	BalanceValid   bool   `json:"balance_valid"`
	FraudValid     bool   `json:"fraud_check"`
	Message        string `json:"message"`
	TxID           string `json:"transaction_id"`
	Status         string `json:"transaction_status"`
}

// Verifier runs the verification pipeline against the database.
type Verifier struct {
	db        *database.Database
	detector  *fraud.Detector
	evHandler func(v string, args ...any)
}

// New constructs a verifier for use.
func New(db *database.Database, detector *fraud.Detector, evHandler func(v string, args ...any)) *Verifier {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Verifier{
		db:        db,
		detector:  detector,
		evHandler: ev,
	}
}

// Verify runs the full pipeline for the specified transaction id, or for
// the most recently created transaction when the id is empty. The call is
// idempotent in effect: once a transaction is executed, every further
// attempt fails with already-executed and balances never move twice.
func (v *Verifier) Verify(txID string) Result {
	tx, err := v.lookup(txID)
	if err != nil {
		return Result{
			Message: err.Error(),
			TxID:    txID,
			Status:  StatusNotFound,
		}
	}

	v.evHandler("verify: Verify: tx[%s]: started", tx.ID)

	// The coarsest replay guard comes first and mutates nothing.
	if tx.Executed {
		v.evHandler("verify: Verify: tx[%s]: already executed", tx.ID)
		return Result{
			Message: database.ErrAlreadyExecuted.Error(),
			TxID:    tx.ID,
			Status:  StatusExecuted,
		}
	}

	if err := v.checkFormat(tx); err != nil {
		return v.reject(tx, Result{
			Message: fmt.Sprintf("invalid format: %s", err),
			TxID:    tx.ID,
		})
	}

	sigErr := v.checkSignature(tx)
	balErr := v.checkBalance(tx)
	fraudErr := v.detector.Check(tx)

	result := Result{
		SignatureValid: sigErr == nil,
		BalanceValid:   balErr == nil,
		FraudValid:     fraudErr == nil,
		TxID:           tx.ID,
	}

	if sigErr == nil && balErr == nil && fraudErr == nil {
		if execErr := v.db.ExecuteTransfer(tx.ID); execErr != nil {

			// A concurrent verification won the race and already moved
			// the funds. Report the same outcome as the early guard and
			// leave the winner's durable status alone.
			if errors.Is(execErr, database.ErrAlreadyExecuted) {
				v.evHandler("verify: Verify: tx[%s]: already executed", tx.ID)
				return Result{
					Message: database.ErrAlreadyExecuted.Error(),
					TxID:    tx.ID,
					Status:  StatusExecuted,
				}
			}

			// Checks passed but execution lost the race or hit storage
			// trouble. The overall result is downgraded to rejected.
			v.evHandler("verify: Verify: tx[%s]: execution failed: %s", tx.ID, execErr)
			if errors.Is(execErr, database.ErrInsufficientBalance) {
				result.BalanceValid = false
			}
			result.Message = fmt.Sprintf("execution failed: %s", execErr)
			return v.reject(tx, result)
		}

		result.Valid = true
		result.Status = StatusVerified
		result.Message = "transaction verified and executed"
		v.evHandler("verify: Verify: tx[%s]: verified and executed", tx.ID)
		return result
	}

	result.Message = composeMessage(sigErr, balErr, fraudErr)
	return v.reject(tx, result)
}

// =============================================================================

// lookup fetches the transaction to verify.
func (v *Verifier) lookup(txID string) (database.Tx, error) {
	if txID == "" {
		return v.db.LatestTx()
	}
	return v.db.GetTx(txID)
}

// checkFormat validates the structural shape of the transaction: required
// fields present, positive amount, sender distinct from receiver.
func (v *Verifier) checkFormat(tx database.Tx) error {
	return validate.Check(tx)
}

// checkSignature recomputes the canonical payload from the transaction's
// own stored field values and verifies the signature against the sender's
// stored public key. Any divergence fails.
func (v *Verifier) checkSignature(tx database.Tx) error {
	sender, err := v.db.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("sender account: %w", err)
	}

	if err := signature.Verify(tx.SignPayload(), sender.PublicKey, tx.Signature); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	return nil
}

// checkBalance confirms the sender's current balance covers the amount.
// Execution re-checks under the write lock, this is the early gate.
func (v *Verifier) checkBalance(tx database.Tx) error {
	sender, err := v.db.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("sender account: %w", err)
	}

	if sender.Balance < tx.Amount {
		return fmt.Errorf("balance %d < amount %d: %w", sender.Balance, tx.Amount, database.ErrInsufficientBalance)
	}

	return nil
}

// reject marks the transaction rejected with the failing reason preserved
// and finalizes the result.
func (v *Verifier) reject(tx database.Tx, result Result) Result {
	if err := v.db.UpdateTxStatus(tx.ID, database.StatusRejected, result.Message); err != nil {
		v.evHandler("verify: reject: tx[%s]: ERROR: %s", tx.ID, err)
	}

	result.Valid = false
	result.Status = StatusRejected
	v.evHandler("verify: Verify: tx[%s]: rejected: %s", tx.ID, result.Message)
	return result
}

// composeMessage folds the individual check outcomes into one
// human-readable line.
func composeMessage(sigErr, balErr, fraudErr error) string {
	parts := []string{}

	if sigErr != nil {
		parts = append(parts, sigErr.Error())
	} else {
		parts = append(parts, "signature valid")
	}

	if balErr != nil {
		parts = append(parts, balErr.Error())
	} else {
		parts = append(parts, "balance sufficient")
	}

	if fraudErr != nil {
		parts = append(parts, fraudErr.Error())
	} else {
		parts = append(parts, "fraud checks passed")
	}

	return strings.Join(parts, " | ")
}
