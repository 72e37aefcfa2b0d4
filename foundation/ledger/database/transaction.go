package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trong0x/vanledger/foundation/ledger/signature"
)

// Status values a transaction moves through. A transaction is immutable
// once signed except for the status, executed flag and reject reason,
// which only the verification pipeline sets.
const (
	StatusPending  = "pending"
	StatusSigned   = "signed"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// TypeReward marks the system issued transaction that pays a miner.
const TypeReward = "mining_reward"

// Sentinel values used by reward transactions, which are issued by the
// system and never pass through the verification pipeline.
const (
	SystemAccount   = "SYSTEM"
	SystemSignature = "SYSTEM_REWARD"
)

// Tx is the transactional information between two parties.
type Tx struct {
	ID          string  `json:"id" validate:"required"`
	From        string  `json:"from" validate:"required"`
	To          string  `json:"to" validate:"required,nefield=From"`
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	Amount      uint64  `json:"amount" validate:"required,gt=0"`
	Timestamp   int64   `json:"timestamp" validate:"required"`
	ExpiresAt   int64   `json:"expires_at,omitempty"`
	Nonce       *uint64 `json:"nonce,omitempty"`
	Signature   string  `json:"signature,omitempty" validate:"required"`
	Status      string  `json:"status"`
	Executed    bool    `json:"executed"`
	Type        string  `json:"type,omitempty"`

	// RejectReason preserves why verification rejected this transaction.
	RejectReason string `json:"reject_reason,omitempty"`
}

// NewTx constructs an unsigned transfer between the two accounts. The
// sender's current nonce is captured as-is, the store advances it once the
// transaction is durably recorded.
func NewTx(sender Account, receiver Account, amount uint64, ttl time.Duration) (Tx, error) {
	if amount == 0 {
		return Tx{}, ErrInvalidAmount
	}

	now := time.Now().UTC()
	nonce := sender.Nonce

	tx := Tx{
		ID:          uuid.New().String(),
		From:        sender.Name,
		To:          receiver.Name,
		FromAddress: sender.Address,
		ToAddress:   receiver.Address,
		Amount:      amount,
		Timestamp:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
		Nonce:       &nonce,
		Status:      StatusPending,
	}

	return tx, nil
}

// NewRewardTx constructs the system issued transaction that credits the
// miner of a block with the reward and the collected fees.
func NewRewardTx(blockIndex uint64, minerAddress string, amount uint64) Tx {
	return Tx{
		ID:        fmt.Sprintf("reward_block_%d", blockIndex),
		From:      SystemAccount,
		To:        minerAddress,
		Amount:    amount,
		Timestamp: time.Now().UTC().Unix(),
		Signature: SystemSignature,
		Status:    StatusVerified,
		Executed:  true,
		Type:      TypeReward,
	}
}

// IsReward tests if the transaction is associated with a mining reward.
func (tx Tx) IsReward() bool {
	return tx.Type == TypeReward
}

// NonceValue returns the sender assigned nonce, or zero for transactions
// recorded before nonce support existed.
func (tx Tx) NonceValue() uint64 {
	if tx.Nonce == nil {
		return 0
	}
	return *tx.Nonce
}

// SignPayload builds the canonical signing payload from the transaction's
// own stored field values. Signing and verification both come through here
// so the encodings can never diverge.
func (tx Tx) SignPayload() signature.Payload {
	return signature.Payload{
		Amount:      tx.Amount,
		From:        tx.From,
		FromAddress: tx.FromAddress,
		ID:          tx.ID,
		Nonce:       tx.NonceValue(),
		Timestamp:   tx.Timestamp,
		To:          tx.To,
		ToAddress:   tx.ToAddress,
	}
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d[%s]", tx.From, tx.NonceValue(), tx.Status)
}
