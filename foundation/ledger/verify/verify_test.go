package verify_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/fraud"
	"github.com/trong0x/vanledger/foundation/ledger/genesis"
	"github.com/trong0x/vanledger/foundation/ledger/signature"
	"github.com/trong0x/vanledger/foundation/ledger/verify"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// testIterations keeps the key derivation fast in tests.
const testIterations = 4096

// ledger bundles everything a pipeline test needs.
type ledger struct {
	db       *database.Database
	verifier *verify.Verifier
	gen      genesis.Genesis
	accounts map[string]database.Account
}

func newLedger(t *testing.T, balances map[string]uint64) *ledger {
	t.Helper()

	gen := genesis.Default()
	gen.KeyIterations = testIterations

	db, err := database.New(filepath.Join(t.TempDir(), "ledger.db"), gen, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := make(map[string]database.Account)
	for name, balance := range balances {
		account, err := database.NewAccount(name, "pw-"+name, balance, testIterations)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build account %s: %v", failed, name, err)
		}
		if err := db.CreateAccount(account); err != nil {
			t.Fatalf("\t%s\tShould be able to create account %s: %v", failed, name, err)
		}
		accounts[name] = account
	}

	detector := fraud.NewDetector(db, gen)

	return &ledger{
		db:       db,
		verifier: verify.New(db, detector, nil),
		gen:      gen,
		accounts: accounts,
	}
}

// signedTransfer creates, signs and persists a transfer ready for the
// pipeline.
func (l *ledger) signedTransfer(t *testing.T, from, to string, amount uint64) database.Tx {
	t.Helper()

	tx, err := database.NewTx(l.accounts[from], l.accounts[to], amount, l.gen.TransactionTTL)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the transaction: %v", failed, err)
	}

	privateKey, err := l.accounts[from].PrivateKey("pw-"+from, testIterations)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to decrypt the signing key: %v", failed, err)
	}

	sig, err := signature.Sign(tx.SignPayload(), privateKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	tx.Signature = sig
	tx.Status = database.StatusSigned

	if err := l.db.SaveTx(tx); err != nil {
		t.Fatalf("\t%s\tShould be able to save the transaction: %v", failed, err)
	}

	return tx
}

// =============================================================================

func Test_VerifyPipeline(t *testing.T) {
	t.Log("Given the need to verify and settle a legitimate transfer.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen alice sends bob 50000 with a valid signature.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100_000, "bob": 0})
			tx := l.signedTransfer(t, "alice", "bob", 50_000)

			result := l.verifier.Verify(tx.ID)

			if !result.Valid || !result.SignatureValid || !result.BalanceValid || !result.FraudValid {
				t.Fatalf("\t%s\tTest %d:\tShould pass every stage: %+v", failed, testID, result)
			}
			t.Logf("\t%s\tTest %d:\tShould pass every stage.", success, testID)

			if result.Status != verify.StatusVerified {
				t.Errorf("\t%s\tTest %d:\tShould report status verified, got %q.", failed, testID, result.Status)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report status verified.", success, testID)
			}

			alice, _ := l.db.GetAccount("alice")
			bob, _ := l.db.GetAccount("bob")
			if alice.Balance != 50_000 || bob.Balance != 50_000 {
				t.Errorf("\t%s\tTest %d:\tShould settle the balances 50000/50000, got %d/%d.", failed, testID, alice.Balance, bob.Balance)
			} else {
				t.Logf("\t%s\tTest %d:\tShould settle the balances 50000/50000.", success, testID)
			}

			// Second attempt must not move money again.
			again := l.verifier.Verify(tx.ID)
			if again.Valid || again.Status != verify.StatusExecuted {
				t.Errorf("\t%s\tTest %d:\tShould refuse to verify an executed transaction: %+v", failed, testID, again)
			} else {
				t.Logf("\t%s\tTest %d:\tShould refuse to verify an executed transaction.", success, testID)
			}

			alice, _ = l.db.GetAccount("alice")
			if alice.Balance != 50_000 {
				t.Errorf("\t%s\tTest %d:\tShould leave balances untouched on the replay.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould leave balances untouched on the replay.", success, testID)
			}
		}
	}
}

func Test_VerifyTamperedAmount(t *testing.T) {
	t.Log("Given the need to catch a transaction modified after signing.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the amount is changed after the signature was produced.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100_000, "bob": 0})
			tx := l.signedTransfer(t, "alice", "bob", 1_000)

			tx.Amount = 90_000
			if err := l.db.SaveTx(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to overwrite the row: %v", failed, testID, err)
			}

			result := l.verifier.Verify(tx.ID)

			if result.Valid {
				t.Fatalf("\t%s\tTest %d:\tShould not verify the tampered transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify the tampered transaction.", success, testID)

			if result.SignatureValid {
				t.Errorf("\t%s\tTest %d:\tShould report the signature invalid.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report the signature invalid.", success, testID)
			}

			if result.Status != verify.StatusRejected {
				t.Errorf("\t%s\tTest %d:\tShould report status rejected, got %q.", failed, testID, result.Status)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report status rejected.", success, testID)
			}

			stored, _ := l.db.GetTx(tx.ID)
			if stored.Status != database.StatusRejected || stored.RejectReason == "" {
				t.Errorf("\t%s\tTest %d:\tShould persist the rejection with its reason.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould persist the rejection with its reason.", success, testID)
			}

			alice, _ := l.db.GetAccount("alice")
			if alice.Balance != 100_000 {
				t.Errorf("\t%s\tTest %d:\tShould leave the sender balance untouched.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould leave the sender balance untouched.", success, testID)
			}
		}
	}
}

func Test_VerifyInsufficientBalance(t *testing.T) {
	t.Log("Given the need to block a transfer the sender cannot cover.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen alice sends more than she holds.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100, "bob": 0})
			tx := l.signedTransfer(t, "alice", "bob", 5_000)

			result := l.verifier.Verify(tx.ID)

			if result.Valid || result.BalanceValid {
				t.Errorf("\t%s\tTest %d:\tShould fail the balance stage: %+v", failed, testID, result)
			} else {
				t.Logf("\t%s\tTest %d:\tShould fail the balance stage.", success, testID)
			}

			if !result.SignatureValid {
				t.Errorf("\t%s\tTest %d:\tShould still report the signature valid.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould still report the signature valid.", success, testID)
			}
		}
	}
}

func Test_VerifyDoubleSpend(t *testing.T) {
	t.Log("Given the need to let exactly one of two competing transfers through.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two signed transfers carry the same nonce.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100_000, "bob": 0})

			// Both are built from the same account snapshot so they carry
			// the identical nonce.
			first := l.signedTransfer(t, "alice", "bob", 30_000)
			r1 := l.verifier.Verify(first.ID)

			second := l.signedTransfer(t, "alice", "bob", 30_000)
			r2 := l.verifier.Verify(second.ID)

			validCount := 0
			if r1.Valid {
				validCount++
			}
			if r2.Valid {
				validCount++
			}

			if validCount != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould verify exactly one transfer, got %d.", failed, testID, validCount)
			}
			t.Logf("\t%s\tTest %d:\tShould verify exactly one transfer.", success, testID)

			if r2.FraudValid {
				t.Errorf("\t%s\tTest %d:\tShould fail the second on the fraud stage: %+v", failed, testID, r2)
			} else {
				t.Logf("\t%s\tTest %d:\tShould fail the second on the fraud stage.", success, testID)
			}

			alice, _ := l.db.GetAccount("alice")
			bob, _ := l.db.GetAccount("bob")
			if alice.Balance != 70_000 || bob.Balance != 30_000 {
				t.Errorf("\t%s\tTest %d:\tShould move the amount exactly once, got %d/%d.", failed, testID, alice.Balance, bob.Balance)
			} else {
				t.Logf("\t%s\tTest %d:\tShould move the amount exactly once.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen both competing transfers are in flight together.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100_000, "bob": 0, "charlie": 0})

			toBob := l.signedTransfer(t, "alice", "bob", 80_000)
			toCharlie := l.signedTransfer(t, "alice", "charlie", 80_000)

			r1 := l.verifier.Verify(toBob.ID)
			r2 := l.verifier.Verify(toCharlie.ID)

			validCount := 0
			if r1.Valid {
				validCount++
			}
			if r2.Valid {
				validCount++
			}

			if validCount != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould verify exactly one transfer, got %d.", failed, testID, validCount)
			}
			t.Logf("\t%s\tTest %d:\tShould verify exactly one transfer.", success, testID)

			alice, _ := l.db.GetAccount("alice")
			if alice.Balance != 20_000 {
				t.Errorf("\t%s\tTest %d:\tShould debit alice exactly once, got %d.", failed, testID, alice.Balance)
			} else {
				t.Logf("\t%s\tTest %d:\tShould debit alice exactly once.", success, testID)
			}
		}
	}
}

func Test_VerifyConcurrent(t *testing.T) {
	t.Log("Given the need to keep one durable outcome under concurrent verification.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two verifications race on the same transfer.", testID)
		{
			const iterations = 10

			balances := map[string]uint64{"bob": 0}
			for i := 0; i < iterations; i++ {
				balances[fmt.Sprintf("alice%d", i)] = 10_000
			}
			l := newLedger(t, balances)

			for i := 0; i < iterations; i++ {
				sender := fmt.Sprintf("alice%d", i)
				tx := l.signedTransfer(t, sender, "bob", 1_000)

				results := make([]verify.Result, 2)
				var wg sync.WaitGroup
				wg.Add(2)
				for g := 0; g < 2; g++ {
					go func(g int) {
						defer wg.Done()
						results[g] = l.verifier.Verify(tx.ID)
					}(g)
				}
				wg.Wait()

				validCount := 0
				for _, result := range results {
					if result.Valid {
						validCount++
					}
				}
				if validCount != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould settle exactly once, got %d valid results.", failed, testID, validCount)
				}

				stored, err := l.db.GetTx(tx.ID)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to re-read the transaction: %v", failed, testID, err)
				}
				if !stored.Executed || stored.Status != database.StatusVerified {
					t.Fatalf("\t%s\tTest %d:\tShould keep the executed transfer verified, got status %q.", failed, testID, stored.Status)
				}

				account, _ := l.db.GetAccount(sender)
				if account.Balance != 9_000 {
					t.Fatalf("\t%s\tTest %d:\tShould debit the sender exactly once, got %d.", failed, testID, account.Balance)
				}
			}

			t.Logf("\t%s\tTest %d:\tShould settle exactly once per race.", success, testID)
			t.Logf("\t%s\tTest %d:\tShould keep the executed transfer verified.", success, testID)
			t.Logf("\t%s\tTest %d:\tShould debit the sender exactly once.", success, testID)
		}
	}
}

func Test_VerifyLookup(t *testing.T) {
	t.Log("Given the need to resolve which transaction a verification targets.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the id does not exist.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100, "bob": 0})

			result := l.verifier.Verify("no-such-id")
			if result.Valid || result.Status != verify.StatusNotFound {
				t.Errorf("\t%s\tTest %d:\tShould report not found: %+v", failed, testID, result)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report not found.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the id is empty.", testID)
		{
			l := newLedger(t, map[string]uint64{"alice": 100_000, "bob": 0})
			tx := l.signedTransfer(t, "alice", "bob", 1_000)

			result := l.verifier.Verify("")
			if result.TxID != tx.ID {
				t.Errorf("\t%s\tTest %d:\tShould target the latest transaction, got %q.", failed, testID, result.TxID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould target the latest transaction.", success, testID)
			}

			if !result.Valid {
				t.Errorf("\t%s\tTest %d:\tShould verify the latest transaction: %+v", failed, testID, result)
			} else {
				t.Logf("\t%s\tTest %d:\tShould verify the latest transaction.", success, testID)
			}
		}
	}
}
