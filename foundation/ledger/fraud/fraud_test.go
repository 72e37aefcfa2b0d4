package fraud_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/trong0x/vanledger/foundation/ledger/database"
	"github.com/trong0x/vanledger/foundation/ledger/fraud"
	"github.com/trong0x/vanledger/foundation/ledger/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// fakeStore serves canned transaction history to the detector.
type fakeStore struct {
	pending []database.Tx
	history []database.Tx
}

func (f *fakeStore) PendingTxsBySender(name string) ([]database.Tx, error) {
	return f.pending, nil
}

func (f *fakeStore) TxsBySender(name string) ([]database.Tx, error) {
	return f.history, nil
}

func ptr(v uint64) *uint64 { return &v }

// validSignature is shaped like a real hex encoded signature without being one.
var validSignature = "0x" + strings.Repeat("ab", 65)

// =============================================================================

func Test_FraudChecks(t *testing.T) {
	now := time.Now().UTC()

	baseTx := func() database.Tx {
		return database.Tx{
			ID:        "tx-new",
			From:      "alice",
			To:        "bob",
			Amount:    500,
			Timestamp: now.Unix(),
			ExpiresAt: now.Add(10 * time.Minute).Unix(),
			Nonce:     ptr(5),
			Signature: validSignature,
			Status:    database.StatusSigned,
		}
	}

	type table struct {
		name   string
		tx     func() database.Tx
		store  fakeStore
		check  string
		reason string
	}

	tt := []table{
		{
			name: "clean transaction passes",
			tx:   baseTx,
		},
		{
			name: "duplicate nonce in flight",
			tx:   baseTx,
			store: fakeStore{
				pending: []database.Tx{
					{ID: "tx-other", From: "alice", Amount: 100, Nonce: ptr(5), Status: database.StatusSigned},
				},
			},
			check: "double_spend",
		},
		{
			name: "nonce reused by verified transaction",
			tx:   baseTx,
			store: fakeStore{
				history: []database.Tx{
					{ID: "tx-old", From: "alice", Amount: 100, Nonce: ptr(5), Status: database.StatusVerified},
				},
			},
			check: "replay",
		},
		{
			name: "expired transaction",
			tx: func() database.Tx {
				tx := baseTx()
				tx.ExpiresAt = now.Add(-time.Minute).Unix()
				return tx
			},
			check: "expiry",
		},
		{
			name: "missing signature",
			tx: func() database.Tx {
				tx := baseTx()
				tx.Signature = ""
				return tx
			},
			check: "signature",
		},
		{
			name: "signature is not hex",
			tx: func() database.Tx {
				tx := baseTx()
				tx.Signature = "not-hex-at-all"
				return tx
			},
			check: "signature",
		},
		{
			name: "signature too short",
			tx: func() database.Tx {
				tx := baseTx()
				tx.Signature = "0xabcd"
				return tx
			},
			check: "signature",
		},
		{
			name: "amount over the ceiling",
			tx: func() database.Tx {
				tx := baseTx()
				tx.Amount = 100_000_001
				return tx
			},
			check: "amount",
		},
	}

	t.Log("Given the need to gate transactions on the fraud checks.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen checking %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					store := tst.store
					detector := fraud.NewDetector(&store, genesis.Default())

					err := detector.Check(tst.tx())

					if tst.check == "" {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould pass all checks: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould pass all checks.", success, testID)
						return
					}

					var rejected *fraud.RejectedError
					if !errors.As(err, &rejected) {
						t.Fatalf("\t%s\tTest %d:\tShould fail with a rejection: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould fail with a rejection.", success, testID)

					if rejected.Check != tst.check {
						t.Errorf("\t%s\tTest %d:\tShould fail the %q check, got %q.", failed, testID, tst.check, rejected.Check)
					} else {
						t.Logf("\t%s\tTest %d:\tShould fail the %q check.", success, testID, tst.check)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_LegacyHeuristics(t *testing.T) {
	now := time.Now().UTC()
	gen := genesis.Default()

	// Legacy transactions carry no nonce at all.
	legacyTx := func() database.Tx {
		return database.Tx{
			ID:        "legacy-1",
			From:      "alice",
			To:        "bob",
			Amount:    500,
			Timestamp: now.Unix(),
			Signature: validSignature,
			Status:    database.StatusSigned,
		}
	}

	t.Log("Given the need to screen transactions recorded before nonce support.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a similar amount is pending inside the window.", testID)
		{
			store := fakeStore{
				pending: []database.Tx{
					{ID: "legacy-0", From: "alice", Amount: 500, Timestamp: now.Add(-30 * time.Second).Unix(), Status: database.StatusSigned},
				},
			}
			detector := fraud.NewDetector(&store, gen)

			var rejected *fraud.RejectedError
			if err := detector.Check(legacyTx()); !errors.As(err, &rejected) || rejected.Check != "double_spend" {
				t.Errorf("\t%s\tTest %d:\tShould reject as a double spend: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject as a double spend.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the same amount is pending outside the window.", testID)
		{
			store := fakeStore{
				pending: []database.Tx{
					{ID: "legacy-0", From: "alice", Amount: 500, Timestamp: now.Add(-5 * time.Minute).Unix(), Status: database.StatusSigned},
				},
			}
			detector := fraud.NewDetector(&store, gen)

			if err := detector.Check(legacyTx()); err != nil {
				t.Errorf("\t%s\tTest %d:\tShould pass when the window has lapsed: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould pass when the window has lapsed.", success, testID)
			}
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen the transaction is too old.", testID)
		{
			tx := legacyTx()
			tx.Timestamp = now.Add(-11 * time.Minute).Unix()

			detector := fraud.NewDetector(&fakeStore{}, gen)

			var rejected *fraud.RejectedError
			if err := detector.Check(tx); !errors.As(err, &rejected) || rejected.Check != "replay" {
				t.Errorf("\t%s\tTest %d:\tShould reject a stale transaction: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a stale transaction.", success, testID)
			}
		}

		testID = 3
		t.Logf("\tTest %d:\tWhen the transaction is dated in the future.", testID)
		{
			tx := legacyTx()
			tx.Timestamp = now.Add(2 * time.Minute).Unix()

			detector := fraud.NewDetector(&fakeStore{}, gen)

			var rejected *fraud.RejectedError
			err := detector.Check(tx)
			if !errors.As(err, &rejected) || rejected.Check != "replay" || !strings.Contains(rejected.Reason, "future") {
				t.Errorf("\t%s\tTest %d:\tShould reject a future dated transaction: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a future dated transaction.", success, testID)
			}
		}

		testID = 4
		t.Logf("\tTest %d:\tWhen the id was already processed.", testID)
		{
			store := fakeStore{
				history: []database.Tx{
					{ID: "legacy-1", From: "alice", Amount: 500, Status: database.StatusVerified},
				},
			}
			detector := fraud.NewDetector(&store, gen)

			var rejected *fraud.RejectedError
			if err := detector.Check(legacyTx()); !errors.As(err, &rejected) || rejected.Check != "replay" {
				t.Errorf("\t%s\tTest %d:\tShould reject the replayed id: %v", failed, testID, err)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject the replayed id.", success, testID)
			}
		}
	}
}
