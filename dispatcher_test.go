package custody

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherLockUnlock(t *testing.T) {
	dispatcher := NewDispatcher(testProgram, nil)
	assert.Equal(t, testProgram, dispatcher.Program())

	account := newTestAccount(t, 4)
	bank := newTestBank(map[ID]uint64{alice: 100})

	outcome, err := dispatcher.Invoke(account, alice, Instruction{Op: OpLock, Amount: 100}.Encode(), bank)
	assert.NoError(t, err)
	assert.Equal(t, &Outcome{
		Instruction: Instruction{Op: OpLock, Amount: 100},
		User:        alice,
		Locked:      100,
	}, outcome)
	assert.Equal(t, uint64(100), bank.balances[testVault])

	ledger, err := Decode(account.Data)
	require.NoError(t, err)
	assertLedger(t, &Ledger{Owner: testAuthority, Entries: []LockEntry{
		{User: alice, Amount: 100},
	}}, ledger)

	outcome, err = dispatcher.Invoke(account, alice, Instruction{Op: OpUnlock, Amount: 40}.Encode(), bank)
	assert.NoError(t, err)
	assert.Equal(t, uint64(60), outcome.Locked)

	outcome, err = dispatcher.Invoke(account, alice, Instruction{Op: OpUnlock, Amount: 60}.Encode(), bank)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), outcome.Locked)
	assert.Equal(t, uint64(100), bank.balances[alice])

	ledger, err = Decode(account.Data)
	require.NoError(t, err)
	assertLedger(t, &Ledger{Owner: testAuthority}, ledger)
	assert.Equal(t, make([]byte, EncodedSize(4)-32), account.Data[32:])
}

func TestDispatcherRejections(t *testing.T) {
	dispatcher := NewDispatcher(testProgram, nil)

	table := []struct {
		name    string
		prepare func(*Account)
		data    []byte
		err     error
	}{
		{
			name: "truncated",
			data: []byte{0, 1, 0, 0, 0},
			err:  ErrTruncatedInstruction,
		},
		{
			name: "unknown opcode",
			data: []byte{9, 1, 0, 0, 0, 0, 0, 0, 0},
			err:  ErrUnknownOpcode,
		},
		{
			name: "zero amount",
			data: Instruction{Op: OpLock}.Encode(),
			err:  ErrInvalidAmount,
		},
		{
			name: "insufficient funds",
			data: Instruction{Op: OpLock, Amount: 1000}.Encode(),
			err:  ErrInsufficientFunds,
		},
		{
			name: "insufficient locked",
			data: Instruction{Op: OpUnlock, Amount: 11}.Encode(),
			err:  ErrInsufficientLocked,
		},
		{
			name: "incorrect owner",
			prepare: func(account *Account) {
				account.Program = DeriveID("other")
			},
			data: Instruction{Op: OpLock, Amount: 1}.Encode(),
			err:  ErrIncorrectOwner,
		},
		{
			name: "malformed buffer",
			prepare: func(account *Account) {
				account.Data[32] = 0xFF
			},
			data: Instruction{Op: OpLock, Amount: 1}.Encode(),
			err:  ErrMalformedBuffer,
		},
	}

	for _, item := range table {
		t.Run(item.name, func(t *testing.T) {
			// prepare account with an existing lock
			account := newTestAccount(t, 2)
			require.NoError(t, Encode(&Ledger{Owner: testAuthority, Entries: []LockEntry{
				{User: alice, Amount: 10},
			}}, account.Data))
			if item.prepare != nil {
				item.prepare(account)
			}

			before := bytes.Clone(account.Data)
			bank := newTestBank(map[ID]uint64{alice: 100, testVault: 10})

			outcome, err := dispatcher.Invoke(account, alice, item.data, bank)
			assert.Nil(t, outcome)
			assert.ErrorIs(t, err, item.err)
			assert.Equal(t, before, account.Data)
			assert.Equal(t, 0, bank.transfers)
			assert.Equal(t, uint64(100), bank.balances[alice])
		})
	}
}

func TestDispatcherCapacity(t *testing.T) {
	dispatcher := NewDispatcher(testProgram, nil)
	account := newTestAccount(t, 1)
	bank := newTestBank(map[ID]uint64{alice: 10, bob: 10})

	_, err := dispatcher.Invoke(account, alice, Instruction{Op: OpLock, Amount: 5}.Encode(), bank)
	assert.NoError(t, err)

	before := bytes.Clone(account.Data)
	_, err = dispatcher.Invoke(account, bob, Instruction{Op: OpLock, Amount: 5}.Encode(), bank)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, CodeBufferTooSmall, CodeOf(err))
	assert.Equal(t, before, account.Data)
	assert.Equal(t, uint64(10), bank.balances[bob])
	assert.Equal(t, uint64(5), bank.balances[testVault])

	// existing user still fits
	_, err = dispatcher.Invoke(account, alice, Instruction{Op: OpLock, Amount: 5}.Encode(), bank)
	assert.NoError(t, err)
}

func TestDispatcherZeroCapacity(t *testing.T) {
	dispatcher := NewDispatcher(testProgram, nil)
	account := newTestAccount(t, 0)
	bank := newTestBank(map[ID]uint64{alice: 100})

	before := bytes.Clone(account.Data)
	_, err := dispatcher.Invoke(account, alice, Instruction{Op: OpLock, Amount: 50}.Encode(), bank)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, before, account.Data)
	assert.Equal(t, 0, bank.transfers)
	assert.Equal(t, uint64(100), bank.balances[alice])
	assert.Equal(t, uint64(0), bank.balances[testVault])
}

func TestDispatcherLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dispatcher := NewDispatcher(testProgram, logger)
	account := newTestAccount(t, 1)
	bank := newTestBank(map[ID]uint64{alice: 10})

	_, err := dispatcher.Invoke(account, alice, Instruction{Op: OpLock, Amount: 5}.Encode(), bank)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "invocation committed")

	_, err = dispatcher.Invoke(account, alice, []byte{1}, bank)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "invocation rejected")
	assert.Contains(t, buf.String(), `code="truncated instruction"`)
}
