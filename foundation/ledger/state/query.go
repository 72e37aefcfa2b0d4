package state

import (
	"fmt"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// ChainStats is the overview of the mined chain and the pending pool.
type ChainStats struct {
	Blocks           uint64 `json:"total_blocks"`
	Transactions     int    `json:"total_transactions"`
	PendingInMempool int    `json:"pending_transactions"`
	Difficulty       uint16 `json:"difficulty"`
	MiningReward     uint64 `json:"mining_reward"`
	LatestBlockHash  string `json:"latest_block_hash"`
	IsValid          bool   `json:"is_valid"`
}

// QueryChainStats returns the chain overview, including a full validation
// pass over the persisted chain.
func (s *State) QueryChainStats() (ChainStats, error) {
	count, err := s.db.BlockCount()
	if err != nil {
		return ChainStats{}, err
	}

	var totalTxs int
	if err := s.db.ForEachBlock(func(block database.Block) error {
		totalTxs += len(block.Transactions)
		return nil
	}); err != nil {
		return ChainStats{}, err
	}

	stats := ChainStats{
		Blocks:           count,
		Transactions:     totalTxs,
		PendingInMempool: s.mempool.Count(),
		Difficulty:       s.db.Difficulty(),
		MiningReward:     s.db.MiningReward(),
		IsValid:          true,
	}

	if latest, err := s.db.LatestBlock(); err == nil {
		stats.LatestBlockHash = latest.Hash
	}

	if err := s.db.ValidateChain(); err != nil {
		s.evHandler("state: QueryChainStats: chain validation: %s", err)
		stats.IsValid = false
		s.disallowMining()
	}

	return stats, nil
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlock returns the block at the specified index.
func (s *State) QueryBlock(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// QueryLatestBlock returns the block at the head of the chain.
func (s *State) QueryLatestBlock() (database.Block, error) {
	return s.db.LatestBlock()
}

// ValidateChain walks the whole persisted chain and reports the first
// integrity violation.
func (s *State) ValidateChain() error {
	if err := s.db.ValidateChain(); err != nil {
		s.disallowMining()
		return err
	}
	return nil
}

// =============================================================================

// BlockTxInfo locates a transaction inside the mined chain.
type BlockTxInfo struct {
	Tx            database.Tx `json:"transaction"`
	BlockIndex    uint64      `json:"block_index"`
	BlockHash     string      `json:"block_hash"`
	Confirmations uint64      `json:"confirmations"`
}

// FindBlockTransaction searches the chain for the transaction id and
// reports where it was mined.
func (s *State) FindBlockTransaction(txID string) (BlockTxInfo, error) {
	var info BlockTxInfo
	var found bool

	err := s.db.ForEachBlock(func(block database.Block) error {
		for _, tx := range block.Transactions {
			if tx.ID == txID {
				info = BlockTxInfo{
					Tx:         tx,
					BlockIndex: block.Index,
					BlockHash:  block.Hash,
				}
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return BlockTxInfo{}, err
	}

	if !found {
		return BlockTxInfo{}, fmt.Errorf("transaction %q not mined: %w", txID, database.ErrNotFound)
	}

	count, err := s.db.BlockCount()
	if err != nil {
		return BlockTxInfo{}, err
	}
	info.Confirmations = count - info.BlockIndex

	return info, nil
}
