package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trong0x/vanledger/foundation/ledger/signature"
)

// GenesisParentHash is the previous hash sentinel carried by block zero.
const GenesisParentHash = "0"

// Block represents a group of transactions batched together. Blocks are
// immutable once mined, the chain is append only.
type Block struct {
	Index        uint64 `json:"index"`
	Transactions []Tx   `json:"transactions"`
	Timestamp    int64  `json:"timestamp"`
	PrevHash     string `json:"previous_hash"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"`
}

// blockDigest is the field set the block hash covers, declared in
// lexicographic json-key order so the encoding is deterministic. The hash
// itself is excluded.
type blockDigest struct {
	Index        uint64 `json:"index"`
	Nonce        uint64 `json:"nonce"`
	PrevHash     string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Transactions []Tx   `json:"transactions"`
}

// CalculateHash computes the hash for the block's current contents.
func (b Block) CalculateHash() (string, error) {
	return signature.Hash(blockDigest{
		Index:        b.Index,
		Nonce:        b.Nonce,
		PrevHash:     b.PrevHash,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
	})
}

// =============================================================================

// POW constructs the next block and performs the work to find a nonce that
// solves the proof of work puzzle. The operation runs until solved or the
// context is cancelled.
func POW(ctx context.Context, index uint64, prevHash string, trans []Tx, difficulty uint16, ev func(v string, args ...any)) (Block, error) {
	b := Block{
		Index:        index,
		Transactions: trans,
		Timestamp:    time.Now().UTC().Unix(),
		PrevHash:     prevHash,
	}

	ev("database: POW: MINING: started: blk[%d] txs[%d]", b.Index, len(trans))
	defer ev("database: POW: MINING: completed: blk[%d]", b.Index)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: POW: MINING: CANCELLED")
			return Block{}, ctx.Err()
		}

		hash, err := b.CalculateHash()
		if err != nil {
			return Block{}, err
		}

		if !isHashSolved(difficulty, hash) {
			b.Nonce++
			continue
		}

		b.Hash = hash
		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PrevHash, b.Hash, attempts)

		return b, nil
	}
}

// isHashSolved checks the hash complies with the POW rules. We need to
// match a difficulty number of leading zero hex digits.
func isHashSolved(difficulty uint16, hash string) bool {
	const match = "00000000000000000"

	d := int(difficulty)
	if d > len(match) {
		d = len(match)
	}
	if len(hash) != 64 {
		return false
	}

	return hash[:d] == match[:d]
}

// =============================================================================

// ValidateBlock takes a block and validates it against its parent before
// it can be considered part of the chain.
func (b Block) ValidateBlock(prevBlock Block, difficulty uint16, ev func(v string, args ...any)) error {
	ev("database: ValidateBlock: blk[%d]: check: block hash matches contents", b.Index)

	hash, err := b.CalculateHash()
	if err != nil {
		return err
	}
	if hash != b.Hash {
		return fmt.Errorf("%w: block %d hash mismatch, got %s, exp %s", ErrChainIntegrity, b.Index, b.Hash, hash)
	}

	ev("database: ValidateBlock: blk[%d]: check: block hash has been solved", b.Index)

	if !isHashSolved(difficulty, b.Hash) {
		return fmt.Errorf("%w: block %d does not meet the proof of work target", ErrChainIntegrity, b.Index)
	}

	if b.Index == 0 {
		if b.PrevHash != GenesisParentHash {
			return fmt.Errorf("%w: genesis parent hash is not the sentinel", ErrChainIntegrity)
		}
		return nil
	}

	ev("database: ValidateBlock: blk[%d]: check: parent hash matches parent block", b.Index)

	if b.Index != prevBlock.Index+1 {
		return fmt.Errorf("%w: block %d is not the next number, exp %d", ErrChainIntegrity, b.Index, prevBlock.Index+1)
	}

	if b.PrevHash != prevBlock.Hash {
		return fmt.Errorf("%w: block %d parent hash doesn't match, got %s, exp %s", ErrChainIntegrity, b.Index, b.PrevHash, prevBlock.Hash)
	}

	return nil
}
