package custody

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testProgram   = DeriveID("program")
	testAuthority = DeriveID("authority")
	testVault     = DeriveID("vault")
	alice         = DeriveID("alice")
	bob           = DeriveID("bob")
	carol         = DeriveID("carol")
)

func openTestDB(t testing.TB) *DB {
	// open db
	db, err := OpenMemoryDB()
	require.NoError(t, err)

	// ensure closing
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})

	return db
}

func newTestAccount(t testing.TB, capacity int) *Account {
	// encode empty ledger
	data := make([]byte, EncodedSize(capacity))
	require.NoError(t, Encode(&Ledger{Owner: testAuthority}, data))

	return &Account{
		Key:     testVault,
		Program: testProgram,
		Data:    data,
	}
}

func assertLedger(t *testing.T, expected, actual *Ledger) {
	t.Helper()
	if diff := pretty.Diff(expected, actual); len(diff) > 0 {
		assert.Fail(t, "ledgers differ", "%s", pretty.Sprint(diff))
	}
}

type testBank struct {
	balances  map[ID]uint64
	err       error
	transfers int
}

func newTestBank(balances map[ID]uint64) *testBank {
	if balances == nil {
		balances = map[ID]uint64{}
	}

	return &testBank{
		balances: balances,
	}
}

func (b *testBank) Balance(account ID) (uint64, error) {
	return b.balances[account], nil
}

func (b *testBank) Transfer(from, to ID, amount uint64) error {
	// check injected error
	if b.err != nil {
		return b.err
	}

	// check balance
	if b.balances[from] < amount {
		return ErrInsufficientBalance
	}

	// move amount
	b.balances[from] -= amount
	b.balances[to] += amount
	b.transfers++

	return nil
}
