package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/trong0x/vanledger/foundation/ledger/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are no transactions in the pool.
var ErrNoTransactions = errors.New("no transactions in mempool")

// ErrMiningDisabled is returned when mining has been switched off after a
// chain integrity violation.
var ErrMiningDisabled = errors.New("mining is disabled")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The block is mined for the state's
// configured miner.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	return s.MinePendingTransactions(ctx, s.minerAddress)
}

// MinePendingTransactions takes up to a block's worth of pooled
// transactions, appends the reward transaction, performs the proof of work
// and appends the block to the chain. A real miner account is credited
// with the reward and fees outside the block's own bookkeeping.
func (s *State) MinePendingTransactions(ctx context.Context, minerAddress string) (database.Block, error) {
	if !s.IsMiningAllowed() {
		return database.Block{}, ErrMiningDisabled
	}

	s.evHandler("state: MinePendingTransactions: MINING: check mempool count")

	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	trans := s.mempool.PickBest(int(s.genesis.TransPerBlock))

	// Fees are proportional with a floor, summed over the included
	// transactions and paid alongside the flat reward.
	var fees uint64
	for _, tx := range trans {
		fees += s.genesis.Fee(tx.Amount)
	}
	reward := s.db.MiningReward() + fees

	latestBlock, err := s.db.LatestBlock()
	if err != nil {
		return database.Block{}, fmt.Errorf("latest block: %w", err)
	}

	rewardTx := database.NewRewardTx(latestBlock.Index+1, minerAddress, reward)
	trans = append(trans, rewardTx)

	s.evHandler("state: MinePendingTransactions: MINING: perform POW: txs[%d] reward[%d]", len(trans), reward)

	block, err := database.POW(ctx, latestBlock.Index+1, latestBlock.Hash, trans, s.db.Difficulty(), s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	if err := s.appendBlock(block); err != nil {
		return database.Block{}, err
	}

	// Drop the mined transactions from the pool.
	for _, tx := range block.Transactions {
		s.mempool.Delete(tx)
	}

	// Credit the miner when the address resolves to a real account.
	if account, err := s.db.GetAccountByAddress(minerAddress); err == nil {
		if _, err := s.db.CreditBalance(account.Name, reward); err != nil {
			s.evHandler("state: MinePendingTransactions: MINING: WARNING: credit miner: %s", err)
		} else {
			s.evHandler("state: MinePendingTransactions: MINING: miner[%s] credited[%d]", account.Name, reward)
		}
	}

	return block, nil
}

// appendBlock validates the mined block against the chain head and writes
// it. The state mutex orders concurrent appends; a validation failure here
// is a chain integrity violation and stops all further mining.
func (s *State) appendBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latestBlock, err := s.db.LatestBlock()
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	if err := block.ValidateBlock(latestBlock, s.db.Difficulty(), func(v string, args ...any) { s.evHandler(v, args...) }); err != nil {
		if errors.Is(err, database.ErrChainIntegrity) {
			s.allowMining = false
		}
		return err
	}

	return s.db.SaveBlock(block)
}

// mineGenesisBlock creates and mines block zero.
func (s *State) mineGenesisBlock(ctx context.Context) error {
	s.evHandler("state: mineGenesisBlock: MINING: genesis")

	block, err := database.POW(ctx, 0, database.GenesisParentHash, nil, s.db.Difficulty(), s.evHandler)
	if err != nil {
		return fmt.Errorf("mine genesis block: %w", err)
	}

	return s.db.SaveBlock(block)
}
