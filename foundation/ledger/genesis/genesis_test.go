package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trong0x/vanledger/foundation/ledger/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Fee(t *testing.T) {
	type table struct {
		name   string
		amount uint64
		fee    uint64
	}

	tt := []table{
		{name: "dust pays the floor", amount: 1, fee: 100},
		{name: "floor boundary", amount: 100_000, fee: 100},
		{name: "proportional above the floor", amount: 50_000_000, fee: 50_000},
	}

	gen := genesis.Default()

	t.Log("Given the need to calculate mining fees.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen charging an amount of %d.", testID, tst.amount)
			{
				f := func(t *testing.T) {
					fee := gen.Fee(tst.amount)
					if fee != tst.fee {
						t.Errorf("\t%s\tTest %d:\tShould charge a fee of %d, got %d.", failed, testID, tst.fee, fee)
					} else {
						t.Logf("\t%s\tTest %d:\tShould charge a fee of %d.", success, testID, tst.fee)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Load(t *testing.T) {
	t.Log("Given the need to load genesis parameters from disk.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the genesis file does not exist.", testID)
		{
			gen, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould fall back to defaults: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fall back to defaults.", success, testID)

			if gen.TransPerBlock != 10 || gen.Difficulty != 2 || gen.MiningReward != 100 {
				t.Errorf("\t%s\tTest %d:\tShould carry the default chain parameters.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould carry the default chain parameters.", success, testID)
			}
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the genesis file overrides parameters.", testID)
		{
			path := filepath.Join(t.TempDir(), "genesis.json")
			content := `{"difficulty": 3, "mining_reward": 250}`
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write the genesis file: %v", failed, testID, err)
			}

			gen, err := genesis.Load(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the genesis file: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the genesis file.", success, testID)

			if gen.Difficulty != 3 || gen.MiningReward != 250 {
				t.Errorf("\t%s\tTest %d:\tShould apply the overridden parameters.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould apply the overridden parameters.", success, testID)
			}

			if gen.TransPerBlock != 10 {
				t.Errorf("\t%s\tTest %d:\tShould keep defaults for unspecified parameters.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould keep defaults for unspecified parameters.", success, testID)
			}
		}
	}
}
