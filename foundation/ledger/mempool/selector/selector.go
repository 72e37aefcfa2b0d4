// Package selector provides different transaction selecting algorithms
// for deciding what gets mined into the next block.
package selector

import (
	"fmt"
	"strings"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// List of selector strategies.
const (
	StrategyFee  = "Fee"
	StrategyFIFO = "FIFO"
)

// Func defines a function that takes the pool of transactions and
// returns the set to include in the next block.
type Func func(txs []database.Tx, howMany int) []database.Tx

// strategies holds the set of selector functions for use.
var strategies = map[string]Func{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// Retrieve returns the selector function for the specified strategy. The
// lookup is case insensitive.
func Retrieve(strategy string) (Func, error) {
	for name, fn := range strategies {
		if strings.EqualFold(name, strategy) {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("strategy %q does not exist", strategy)
}
