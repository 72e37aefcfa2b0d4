// Package fraud implements the checks that gate a transaction before any
// balance can move: double spend, replay, expiry, signature shape and
// amount sanity.
package fraud

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/genesis"
)

// Plausible byte-length bounds for a hex encoded ECDSA signature. This is
// a shape check only, cryptographic verification happens in the pipeline.
const (
	minSignatureBytes = 32
	maxSignatureBytes = 70
)

// Storer is the read access to transaction history the detector needs.
type Storer interface {
	PendingTxsBySender(name string) ([]database.Tx, error)
	TxsBySender(name string) ([]database.Tx, error)
}

// RejectedError reports which check failed and why. The reason is kept on
// the transaction's audit trail by the pipeline.
type RejectedError struct {
	Check  string
	Reason string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("fraud check %s: %s", e.Check, e.Reason)
}

// =============================================================================

// Detector runs the fraud checks against a transaction using the
// configured windows and ceilings.
type Detector struct {
	store Storer
	gen   genesis.Genesis
	now   func() time.Time
}

// NewDetector constructs a detector for use.
func NewDetector(store Storer, gen genesis.Genesis) *Detector {
	return &Detector{
		store: store,
		gen:   gen,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Check runs every fraud check in order and short-circuits on the first
// failure. A nil return means the transaction passed all of them.
func (d *Detector) Check(tx database.Tx) error {
	strat := d.strategyFor(tx)

	checks := []func(database.Tx) error{
		strat.doubleSpend,
		strat.replay,
		d.checkExpiry,
		d.checkSignatureShape,
		d.checkAmount,
	}

	for _, check := range checks {
		if err := check(tx); err != nil {
			return err
		}
	}

	return nil
}

// strategyFor selects between the nonce based checks and the legacy
// timestamp heuristics. The legacy path only exists for transactions
// recorded before nonce support and should disappear with that data.
func (d *Detector) strategyFor(tx database.Tx) spendStrategy {
	if tx.Nonce != nil {
		return &nonceStrategy{store: d.store}
	}
	return &legacyStrategy{store: d.store, gen: d.gen, now: d.now}
}

// checkExpiry rejects a transaction whose explicit expiry has passed.
func (d *Detector) checkExpiry(tx database.Tx) error {
	if tx.ExpiresAt == 0 {
		return nil
	}

	if d.now().Unix() > tx.ExpiresAt {
		return &RejectedError{
			Check:  "expiry",
			Reason: fmt.Sprintf("transaction expired at %s", time.Unix(tx.ExpiresAt, 0).UTC().Format(time.RFC3339)),
		}
	}

	return nil
}

// checkSignatureShape rejects a signature that is missing, not valid hex,
// or outside the plausible byte-length range for the scheme.
func (d *Detector) checkSignatureShape(tx database.Tx) error {
	if tx.Signature == "" {
		return &RejectedError{Check: "signature", Reason: "transaction has no signature"}
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(tx.Signature, "0x"))
	if err != nil {
		return &RejectedError{Check: "signature", Reason: "signature is not valid hex"}
	}

	if len(raw) < minSignatureBytes || len(raw) > maxSignatureBytes {
		return &RejectedError{
			Check:  "signature",
			Reason: fmt.Sprintf("signature length %d bytes is implausible", len(raw)),
		}
	}

	return nil
}

// checkAmount rejects a non-positive amount or one above the system ceiling.
func (d *Detector) checkAmount(tx database.Tx) error {
	if tx.Amount == 0 {
		return &RejectedError{Check: "amount", Reason: "amount must be greater than zero"}
	}

	if tx.Amount > d.gen.AmountCeiling {
		return &RejectedError{
			Check:  "amount",
			Reason: fmt.Sprintf("amount %d exceeds the ceiling %d", tx.Amount, d.gen.AmountCeiling),
		}
	}

	return nil
}

// =============================================================================

// spendStrategy is the double-spend/replay pair. Which implementation runs
// depends on whether the transaction carries a nonce.
type spendStrategy interface {
	doubleSpend(tx database.Tx) error
	replay(tx database.Tx) error
}

// nonceStrategy covers transactions that carry a sender assigned nonce.
type nonceStrategy struct {
	store Storer
}

// doubleSpend rejects when another pending, unexecuted transaction from
// the same sender carries the identical nonce.
func (s *nonceStrategy) doubleSpend(tx database.Tx) error {
	pending, err := s.store.PendingTxsBySender(tx.From)
	if err != nil {
		return fmt.Errorf("load pending transactions: %w", err)
	}

	for _, other := range pending {
		if other.ID == tx.ID {
			continue
		}
		if other.Nonce != nil && *other.Nonce == *tx.Nonce {
			return &RejectedError{
				Check:  "double_spend",
				Reason: fmt.Sprintf("duplicate nonce %d in pending transaction %s", *tx.Nonce, other.ID),
			}
		}
	}

	return nil
}

// replay rejects when an already verified transaction from the same sender
// reused the nonce.
func (s *nonceStrategy) replay(tx database.Tx) error {
	history, err := s.store.TxsBySender(tx.From)
	if err != nil {
		return fmt.Errorf("load transaction history: %w", err)
	}

	for _, other := range history {
		if other.ID == tx.ID {
			continue
		}
		if other.Nonce != nil && *other.Nonce == *tx.Nonce && other.Status == database.StatusVerified {
			return &RejectedError{
				Check:  "replay",
				Reason: fmt.Sprintf("nonce %d was already used by verified transaction %s", *tx.Nonce, other.ID),
			}
		}
	}

	return nil
}

// legacyStrategy covers transactions recorded before nonce support. It is
// a compatibility shim kept only for that data.
type legacyStrategy struct {
	store Storer
	gen   genesis.Genesis
	now   func() time.Time
}

// doubleSpend rejects when another pending transaction from the same
// sender moves the same amount inside the configured window.
func (s *legacyStrategy) doubleSpend(tx database.Tx) error {
	pending, err := s.store.PendingTxsBySender(tx.From)
	if err != nil {
		return fmt.Errorf("load pending transactions: %w", err)
	}

	for _, other := range pending {
		if other.ID == tx.ID || other.Amount != tx.Amount {
			continue
		}

		diff := time.Duration(abs(tx.Timestamp-other.Timestamp)) * time.Second
		if diff < s.gen.LegacyDoubleSpendWindow {
			return &RejectedError{
				Check:  "double_spend",
				Reason: fmt.Sprintf("similar pending transaction %s within %s", other.ID, diff),
			}
		}
	}

	return nil
}

// replay rejects stale or future dated transactions and ids that already
// appear verified or signed in the sender's history.
func (s *legacyStrategy) replay(tx database.Tx) error {
	age := s.now().Sub(time.Unix(tx.Timestamp, 0))

	if age > s.gen.LegacyReplayMaxAge {
		return &RejectedError{
			Check:  "replay",
			Reason: fmt.Sprintf("transaction is %s old", age.Round(time.Second)),
		}
	}

	if age < -s.gen.LegacyFutureSkew {
		return &RejectedError{Check: "replay", Reason: "transaction timestamp is in the future"}
	}

	history, err := s.store.TxsBySender(tx.From)
	if err != nil {
		return fmt.Errorf("load transaction history: %w", err)
	}

	for _, other := range history {
		if other.ID != tx.ID {
			continue
		}
		if other.Status == database.StatusVerified {
			return &RejectedError{
				Check:  "replay",
				Reason: fmt.Sprintf("transaction id %s was already processed", tx.ID),
			}
		}
	}

	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
