package selector

import (
	"sort"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// fifoSelect returns the oldest transactions first so nothing waits in the
// pool longer than it has to.
var fifoSelect = func(txs []database.Tx, howMany int) []database.Tx {
	final := make([]database.Tx, len(txs))
	copy(final, txs)

	sort.SliceStable(final, func(i, j int) bool {
		if final[i].Timestamp != final[j].Timestamp {
			return final[i].Timestamp < final[j].Timestamp
		}
		return final[i].ID < final[j].ID
	})

	if howMany < 0 || howMany > len(final) {
		howMany = len(final)
	}

	return final[:howMany]
}
