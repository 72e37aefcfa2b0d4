// Package genesis maintains access to the genesis file and the tunable
// parameters that govern the ledger.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`
	ChainID       uint16    `json:"chain_id"`        // Unique id for this running instance.
	TransPerBlock uint16    `json:"trans_per_block"` // Maximum number of transactions that can be in a block.
	Difficulty    uint16    `json:"difficulty"`      // Number of leading zero hex digits needed to solve the work problem.
	MiningReward  uint64    `json:"mining_reward"`   // Reward for mining a block.
	FeeFloor      uint64    `json:"fee_floor"`       // Minimum fee charged per transaction mined into a block.
	FeePermille   uint64    `json:"fee_permille"`    // Proportional fee in thousandths of the transaction amount.
	AmountCeiling uint64    `json:"amount_ceiling"`  // Largest amount a single transaction may carry.

	// TransactionTTL is how long a transaction may sit unverified before
	// it expires.
	TransactionTTL time.Duration `json:"transaction_ttl"`

	// Windows used by the legacy fraud heuristics for transactions recorded
	// before nonce support existed. Configurable, not hard-coded assumptions.
	LegacyDoubleSpendWindow time.Duration `json:"legacy_double_spend_window"`
	LegacyReplayMaxAge      time.Duration `json:"legacy_replay_max_age"`
	LegacyFutureSkew        time.Duration `json:"legacy_future_skew"`

	// KeyIterations is the PBKDF2 iteration count used when deriving the
	// key that encrypts account signing keys at rest.
	KeyIterations int `json:"key_iterations"`

	// Balances maps account names to an opening balance applied when the
	// account is first created through a bulk seed.
	Balances map[string]uint64 `json:"balances"`
}

// =============================================================================

// Default constructs a Genesis with the parameters the system ships with.
func Default() Genesis {
	return Genesis{
		Date:                    time.Now().UTC(),
		ChainID:                 1,
		TransPerBlock:           10,
		Difficulty:              2,
		MiningReward:            100,
		FeeFloor:                100,
		FeePermille:             1,
		AmountCeiling:           100_000_000,
		TransactionTTL:          10 * time.Minute,
		LegacyDoubleSpendWindow: 120 * time.Second,
		LegacyReplayMaxAge:      600 * time.Second,
		LegacyFutureSkew:        60 * time.Second,
		KeyIterations:           390_000,
	}
}

// Load opens and consumes the genesis file. A missing file is not an
// error, the defaults are used.
func Load(path string) (Genesis, error) {
	genesis := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return genesis, nil
		}
		return Genesis{}, err
	}

	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Fee calculates the mining fee for the specified amount. The fee is
// proportional with a floor so dust transfers still pay for inclusion.
func (g Genesis) Fee(amount uint64) uint64 {
	fee := amount * g.FeePermille / 1000
	if fee < g.FeeFloor {
		fee = g.FeeFloor
	}
	return fee
}
