package state

import (
	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// Reconcile folds verified and executed transactions that never made it
// into a block back into the mempool and signals mining. It runs at
// startup and periodically so the chain stays eventually consistent with
// the account ledger even after a crash mid-flight.
func (s *State) Reconcile() (int, error) {
	s.evHandler("state: Reconcile: started")
	defer s.evHandler("state: Reconcile: completed")

	mined, err := s.db.MinedTxIDs()
	if err != nil {
		return 0, err
	}

	all, err := s.db.ListTxs()
	if err != nil {
		return 0, err
	}

	var pooled int
	for _, tx := range all {
		if tx.Status != database.StatusVerified || !tx.Executed {
			continue
		}
		if _, ok := mined[tx.ID]; ok {
			continue
		}
		if s.mempool.Contains(tx.ID) {
			continue
		}

		s.mempool.Upsert(tx)
		pooled++
		s.evHandler("state: Reconcile: tx[%s]: returned to mempool", tx.ID)
	}

	if s.mempool.Count() > 0 {
		s.signalStartMining()
	}

	return pooled, nil
}
