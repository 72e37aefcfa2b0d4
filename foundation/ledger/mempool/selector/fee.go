package selector

import (
	"sort"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// feeSelect returns the transactions carrying the largest amounts first.
// The mining fee is proportional to the amount, so this maximizes the fee
// paid to the miner of the next block.
var feeSelect = func(txs []database.Tx, howMany int) []database.Tx {
	final := make([]database.Tx, len(txs))
	copy(final, txs)

	sort.SliceStable(final, func(i, j int) bool {
		return final[i].Amount > final[j].Amount
	})

	if howMany < 0 || howMany > len(final) {
		howMany = len(final)
	}

	return final[:howMany]
}
