// Package database handles all the lower level support for maintaining
// account, transaction and block state on disk. A single bbolt file backs
// the whole system and bbolt's exclusive write transaction is the one
// serialization mechanism for balance mutation.
package database

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/trong0x/vanledger/foundation/ledger/genesis"
)

// The bucket layout. Index buckets carry no payload of their own, their
// keys point back into the primary buckets.
var (
	bucketAccounts    = []byte("accounts")
	bucketAddrIndex   = []byte("account_address_index")
	bucketTxs         = []byte("transactions")
	bucketTxSenderIdx = []byte("transaction_sender_index")
	bucketTxSeq       = []byte("transaction_sequence")
	bucketBlocks      = []byte("blocks")
	bucketBlockTxs    = []byte("block_transactions")
	bucketMetadata    = []byte("metadata")
)

// Metadata keys for chain parameters that survive restarts.
const (
	metaDifficulty   = "difficulty"
	metaMiningReward = "mining_reward"
)

// blockHeader is the block row persisted in the blocks bucket. The
// transaction snapshots live in the block transactions bucket keyed by
// block index and position.
type blockHeader struct {
	Index     uint64 `json:"index"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  string `json:"previous_hash"`
	Nonce     uint64 `json:"nonce"`
	Hash      string `json:"hash"`
}

// Database manages all durable state for accounts who transact on the
// ledger, their transactions, and the mined chain.
type Database struct {
	db        *bolt.DB
	genesis   genesis.Genesis
	evHandler func(v string, args ...any)
}

// New opens the database file, prepares the buckets, and seeds the chain
// parameters from genesis when they are not already persisted.
func New(dbPath string, gen genesis.Genesis, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	boltDB, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	buckets := [][]byte{
		bucketAccounts, bucketAddrIndex, bucketTxs, bucketTxSenderIdx,
		bucketTxSeq, bucketBlocks, bucketBlockTxs, bucketMetadata,
	}

	err = boltDB.Update(func(btx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		meta := btx.Bucket(bucketMetadata)
		if meta.Get([]byte(metaDifficulty)) == nil {
			if err := meta.Put([]byte(metaDifficulty), []byte(strconv.FormatUint(uint64(gen.Difficulty), 10))); err != nil {
				return err
			}
		}
		if meta.Get([]byte(metaMiningReward)) == nil {
			if err := meta.Put([]byte(metaMiningReward), []byte(strconv.FormatUint(gen.MiningReward, 10))); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		boltDB.Close()
		return nil, err
	}

	db := Database{
		db:        boltDB,
		genesis:   gen,
		evHandler: ev,
	}

	return &db, nil
}

// Close closes the open database file.
func (db *Database) Close() error {
	return db.db.Close()
}

// Genesis returns the genesis parameters the database was opened with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Difficulty returns the persisted proof of work difficulty.
func (db *Database) Difficulty() uint16 {
	v, err := db.metadataUint(metaDifficulty)
	if err != nil {
		return db.genesis.Difficulty
	}
	return uint16(v)
}

// MiningReward returns the persisted reward paid per mined block.
func (db *Database) MiningReward() uint64 {
	v, err := db.metadataUint(metaMiningReward)
	if err != nil {
		return db.genesis.MiningReward
	}
	return v
}

// metadataUint reads an unsigned integer from the metadata bucket.
func (db *Database) metadataUint(key string) (uint64, error) {
	var v uint64
	err := db.db.View(func(btx *bolt.Tx) error {
		data := btx.Bucket(bucketMetadata).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		parsed, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return err
		}
		v = parsed
		return nil
	})

	return v, err
}

// =============================================================================
// Accounts

// CreateAccount persists a new account row. The name and the derived
// address must both be unused.
func (db *Database) CreateAccount(account Account) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		accounts := btx.Bucket(bucketAccounts)
		addrIdx := btx.Bucket(bucketAddrIndex)

		if accounts.Get([]byte(account.Name)) != nil {
			return fmt.Errorf("account %q: %w", account.Name, ErrAlreadyExists)
		}
		if addrIdx.Get([]byte(account.Address)) != nil {
			return fmt.Errorf("address %q: %w", account.Address, ErrAlreadyExists)
		}

		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("marshal account: %w", err)
		}

		if err := accounts.Put([]byte(account.Name), data); err != nil {
			return err
		}
		return addrIdx.Put([]byte(account.Address), []byte(account.Name))
	})
}

// GetAccount retrieves an account by name, key material included. Callers
// serving public queries must redact with Account.Public.
func (db *Database) GetAccount(name string) (Account, error) {
	var account Account
	err := db.db.View(func(btx *bolt.Tx) error {
		return readAccount(btx, name, &account)
	})

	return account, err
}

// GetAccountByAddress retrieves an account through the unique address index.
func (db *Database) GetAccountByAddress(address string) (Account, error) {
	var account Account
	err := db.db.View(func(btx *bolt.Tx) error {
		name := btx.Bucket(bucketAddrIndex).Get([]byte(address))
		if name == nil {
			return fmt.Errorf("address %q: %w", address, ErrNotFound)
		}
		return readAccount(btx, string(name), &account)
	})

	return account, err
}

// ListAccounts returns every account ordered by name.
func (db *Database) ListAccounts() ([]Account, error) {
	var accounts []Account
	err := db.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket(bucketAccounts).ForEach(func(_, v []byte) error {
			var account Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			accounts = append(accounts, account)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// UpdateBalance unconditionally sets the account balance. Only the
// verification pipeline and mining reward credit call this.
func (db *Database) UpdateBalance(name string, newBalance uint64) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		var account Account
		if err := readAccount(btx, name, &account); err != nil {
			return err
		}

		account.Balance = newBalance
		return writeAccount(btx, account)
	})
}

// CreditBalance adds the delta to the account balance inside one write
// transaction so a concurrent transfer touching the same account is never
// overwritten.
func (db *Database) CreditBalance(name string, delta uint64) (uint64, error) {
	var balance uint64
	err := db.db.Update(func(btx *bolt.Tx) error {
		var account Account
		if err := readAccount(btx, name, &account); err != nil {
			return err
		}

		account.Balance += delta
		balance = account.Balance
		return writeAccount(btx, account)
	})

	return balance, err
}

// IncrementNonce advances the per-account counter and returns the new value.
func (db *Database) IncrementNonce(name string) (uint64, error) {
	var nonce uint64
	err := db.db.Update(func(btx *bolt.Tx) error {
		var account Account
		if err := readAccount(btx, name, &account); err != nil {
			return err
		}

		account.Nonce++
		nonce = account.Nonce
		return writeAccount(btx, account)
	})

	return nonce, err
}

func readAccount(btx *bolt.Tx, name string, account *Account) error {
	data := btx.Bucket(bucketAccounts).Get([]byte(name))
	if data == nil {
		return fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	return json.Unmarshal(data, account)
}

func writeAccount(btx *bolt.Tx, account Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	return btx.Bucket(bucketAccounts).Put([]byte(account.Name), data)
}

// =============================================================================
// Transactions

// SaveTx persists a transaction row and maintains the sender and creation
// order indexes. A transaction is recorded in pending state before it is
// signed so a crash between create and sign is observable.
func (db *Database) SaveTx(tx Tx) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		txs := btx.Bucket(bucketTxs)

		isNew := txs.Get([]byte(tx.ID)) == nil

		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("marshal transaction: %w", err)
		}
		if err := txs.Put([]byte(tx.ID), data); err != nil {
			return err
		}

		if !isNew {
			return nil
		}

		if err := btx.Bucket(bucketTxSenderIdx).Put(senderKey(tx.From, tx.ID), nil); err != nil {
			return err
		}

		seqBucket := btx.Bucket(bucketTxSeq)
		seq, err := seqBucket.NextSequence()
		if err != nil {
			return err
		}
		return seqBucket.Put(itob(seq), []byte(tx.ID))
	})
}

// GetTx retrieves a transaction by id.
func (db *Database) GetTx(id string) (Tx, error) {
	var tx Tx
	err := db.db.View(func(btx *bolt.Tx) error {
		return readTx(btx, id, &tx)
	})

	return tx, err
}

// LatestTx returns the most recently created transaction.
func (db *Database) LatestTx() (Tx, error) {
	var tx Tx
	err := db.db.View(func(btx *bolt.Tx) error {
		_, id := btx.Bucket(bucketTxSeq).Cursor().Last()
		if id == nil {
			return ErrNotFound
		}
		return readTx(btx, string(id), &tx)
	})

	return tx, err
}

// ListTxs returns every transaction in creation order.
func (db *Database) ListTxs() ([]Tx, error) {
	var txs []Tx
	err := db.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket(bucketTxSeq).ForEach(func(_, id []byte) error {
			var tx Tx
			if err := readTx(btx, string(id), &tx); err != nil {
				return err
			}
			txs = append(txs, tx)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// TxsBySender returns every transaction the named account originated, in
// no particular order.
func (db *Database) TxsBySender(name string) ([]Tx, error) {
	var txs []Tx
	err := db.db.View(func(btx *bolt.Tx) error {
		c := btx.Bucket(bucketTxSenderIdx).Cursor()
		prefix := senderKey(name, "")

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			var tx Tx
			if err := readTx(btx, string(k[len(prefix):]), &tx); err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// PendingTxsBySender returns the sender's unexecuted transactions that are
// still in flight (pending or signed).
func (db *Database) PendingTxsBySender(name string) ([]Tx, error) {
	all, err := db.TxsBySender(name)
	if err != nil {
		return nil, err
	}

	var txs []Tx
	for _, tx := range all {
		if tx.Executed {
			continue
		}
		if tx.Status == StatusPending || tx.Status == StatusSigned {
			txs = append(txs, tx)
		}
	}

	return txs, nil
}

// UpdateTxStatus sets the lifecycle status for a transaction and records
// the reason when it is rejected. Nothing is silently dropped.
func (db *Database) UpdateTxStatus(id string, status string, reason string) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		var tx Tx
		if err := readTx(btx, id, &tx); err != nil {
			return err
		}

		tx.Status = status
		if status == StatusRejected {
			tx.RejectReason = reason
		}

		return writeTx(btx, tx)
	})
}

func readTx(btx *bolt.Tx, id string, tx *Tx) error {
	data := btx.Bucket(bucketTxs).Get([]byte(id))
	if data == nil {
		return fmt.Errorf("transaction %q: %w", id, ErrNotFound)
	}
	return json.Unmarshal(data, tx)
}

func writeTx(btx *bolt.Tx, tx Tx) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	return btx.Bucket(bucketTxs).Put([]byte(tx.ID), data)
}

// =============================================================================
// Atomic execution

// ExecuteTransfer performs the indivisible read-check-write sequence that
// debits the sender, credits the receiver and marks the transaction
// executed. The whole sequence runs inside one exclusive write transaction
// so no intermediate state is ever observable and two concurrent transfers
// can never both spend the same insufficient balance.
func (db *Database) ExecuteTransfer(txID string) error {
	const maxAttempts = 3

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = db.executeTransfer(txID)

		switch {
		case err == nil:
			return nil

		// Business failures are terminal for this verification attempt.
		case errors.Is(err, ErrNotFound),
			errors.Is(err, ErrAlreadyExecuted),
			errors.Is(err, ErrInsufficientBalance):
			return err
		}

		db.evHandler("database: ExecuteTransfer: attempt[%d]: transient failure: %s", attempt, err)
	}

	return err
}

func (db *Database) executeTransfer(txID string) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		var tx Tx
		if err := readTx(btx, txID, &tx); err != nil {
			return err
		}

		if tx.Executed {
			return ErrAlreadyExecuted
		}

		var sender, receiver Account
		if err := readAccount(btx, tx.From, &sender); err != nil {
			return err
		}
		if err := readAccount(btx, tx.To, &receiver); err != nil {
			return err
		}

		// Re-check under the write lock. An earlier balance check may have
		// raced another transfer from the same sender.
		if sender.Balance < tx.Amount {
			return fmt.Errorf("balance %d < amount %d: %w", sender.Balance, tx.Amount, ErrInsufficientBalance)
		}

		sender.Balance -= tx.Amount
		receiver.Balance += tx.Amount

		if err := writeAccount(btx, sender); err != nil {
			return err
		}
		if err := writeAccount(btx, receiver); err != nil {
			return err
		}

		tx.Executed = true
		tx.Status = StatusVerified
		return writeTx(btx, tx)
	})
}

// =============================================================================
// Blocks

// SaveBlock appends a mined block. The header and the ordered transaction
// snapshots are written together so the chain can be revalidated byte for
// byte later.
func (db *Database) SaveBlock(block Block) error {
	return db.db.Update(func(btx *bolt.Tx) error {
		header := blockHeader{
			Index:     block.Index,
			Timestamp: block.Timestamp,
			PrevHash:  block.PrevHash,
			Nonce:     block.Nonce,
			Hash:      block.Hash,
		}

		data, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("marshal block: %w", err)
		}
		if err := btx.Bucket(bucketBlocks).Put(itob(block.Index), data); err != nil {
			return err
		}

		blockTxs := btx.Bucket(bucketBlockTxs)
		for position, tx := range block.Transactions {
			snapshot, err := json.Marshal(tx)
			if err != nil {
				return fmt.Errorf("marshal block transaction: %w", err)
			}
			if err := blockTxs.Put(blockTxKey(block.Index, position), snapshot); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetBlock retrieves a block, transaction snapshots included.
func (db *Database) GetBlock(index uint64) (Block, error) {
	var block Block
	err := db.db.View(func(btx *bolt.Tx) error {
		return readBlock(btx, index, &block)
	})

	return block, err
}

// LatestBlock returns the block at the head of the chain.
func (db *Database) LatestBlock() (Block, error) {
	var block Block
	err := db.db.View(func(btx *bolt.Tx) error {
		k, _ := btx.Bucket(bucketBlocks).Cursor().Last()
		if k == nil {
			return ErrNotFound
		}
		return readBlock(btx, btoi(k), &block)
	})

	return block, err
}

// BlockCount returns the number of blocks in the chain.
func (db *Database) BlockCount() (uint64, error) {
	var count uint64
	err := db.db.View(func(btx *bolt.Tx) error {
		count = uint64(btx.Bucket(bucketBlocks).Stats().KeyN)
		return nil
	})

	return count, err
}

// ForEachBlock walks the chain in order, starting at genesis.
func (db *Database) ForEachBlock(fn func(block Block) error) error {
	return db.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket(bucketBlocks).ForEach(func(k, _ []byte) error {
			var block Block
			if err := readBlock(btx, btoi(k), &block); err != nil {
				return err
			}
			return fn(block)
		})
	})
}

// MinedTxIDs returns the block index for every transaction already folded
// into the chain.
func (db *Database) MinedTxIDs() (map[string]uint64, error) {
	mined := make(map[string]uint64)
	err := db.db.View(func(btx *bolt.Tx) error {
		return btx.Bucket(bucketBlockTxs).ForEach(func(k, v []byte) error {
			var tx Tx
			if err := json.Unmarshal(v, &tx); err != nil {
				return err
			}
			mined[tx.ID] = btoi(k[:8])
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return mined, nil
}

// ValidateChain recomputes every block hash, checks the previous hash
// linkage and confirms the proof of work target across the whole chain.
// The first mismatch invalidates the chain from that point.
func (db *Database) ValidateChain() error {
	difficulty := db.Difficulty()

	var prevBlock Block
	return db.ForEachBlock(func(block Block) error {
		if err := block.ValidateBlock(prevBlock, difficulty, db.evHandler); err != nil {
			return err
		}
		prevBlock = block
		return nil
	})
}

func readBlock(btx *bolt.Tx, index uint64, block *Block) error {
	data := btx.Bucket(bucketBlocks).Get(itob(index))
	if data == nil {
		return fmt.Errorf("block %d: %w", index, ErrNotFound)
	}

	var header blockHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}

	*block = Block{
		Index:     header.Index,
		Timestamp: header.Timestamp,
		PrevHash:  header.PrevHash,
		Nonce:     header.Nonce,
		Hash:      header.Hash,
	}

	c := btx.Bucket(bucketBlockTxs).Cursor()
	prefix := itob(index)
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var tx Tx
		if err := json.Unmarshal(v, &tx); err != nil {
			return err
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return nil
}

// =============================================================================

func senderKey(name string, txID string) []byte {
	return []byte(name + "|" + txID)
}

func blockTxKey(index uint64, position int) []byte {
	k := make([]byte, 12)
	copy(k, itob(index))
	binary.BigEndian.PutUint32(k[8:], uint32(position))
	return k
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func hasPrefix(k []byte, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	return string(k[:len(prefix)]) == string(prefix)
}
