package custody

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/cockroachdb/pebble"
)

// The store errors.
var (
	ErrAccountNotFound     = errors.New("custody: account not found")
	ErrAccountExists       = errors.New("custody: account exists")
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	ErrSelfTransfer        = errors.New("custody: transfer to self")
)

// Store keeps accounts and balances in a db. Writes are serialized through
// transactions.
type Store struct {
	db    *DB
	mutex sync.Mutex
}

// NewStore will create and return a store.
func NewStore(db *DB) *Store {
	return &Store{
		db: db,
	}
}

// CreateAccount will allocate an account that can hold up to capacity entries
// and initialize it with an empty ledger owned by the authority.
func (s *Store) CreateAccount(key, program, authority ID, capacity int) error {
	// check capacity
	if capacity < 0 {
		return fmt.Errorf("custody: invalid capacity %d", capacity)
	}

	// begin
	txn := s.Begin()
	defer txn.Close()

	// check existence
	_, err := txn.Account(key)
	if err == nil {
		return ErrAccountExists
	} else if err != ErrAccountNotFound {
		return err
	}

	// encode empty ledger
	data := make([]byte, EncodedSize(capacity))
	err = Encode(&Ledger{Owner: authority}, data)
	if err != nil {
		return err
	}

	// set account
	err = txn.SetAccount(&Account{
		Key:     key,
		Program: program,
		Data:    data,
	})
	if err != nil {
		return err
	}

	return txn.Commit()
}

// Account will load the specified account.
func (s *Store) Account(key ID) (*Account, error) {
	return loadAccount(s.db, key)
}

// Ledger will load and decode the ledger of the specified account.
func (s *Store) Ledger(key ID) (*Ledger, error) {
	// load account
	account, err := s.Account(key)
	if err != nil {
		return nil, err
	}

	return Decode(account.Data)
}

// Balance will return the unlocked balance of the specified account.
func (s *Store) Balance(id ID) (uint64, error) {
	return readBalance(s.db, id)
}

// Deposit will credit the specified amount to an external balance.
func (s *Store) Deposit(id ID, amount uint64) error {
	// begin
	txn := s.Begin()
	defer txn.Close()

	// credit
	err := txn.Credit(id, amount)
	if err != nil {
		return err
	}

	return txn.Commit()
}

// Begin will begin a transaction. The transaction holds the store's write lock
// until it is closed.
func (s *Store) Begin() *Txn {
	// acquire mutex
	s.mutex.Lock()

	return &Txn{
		store: s,
		batch: s.db.NewIndexedBatch(),
	}
}

// Txn is a set of writes that are committed atomically. Reads observe the
// pending writes. A Txn implements Bank.
type Txn struct {
	store  *Store
	batch  *pebble.Batch
	closed bool
}

// Balance implements the Bank interface.
func (t *Txn) Balance(id ID) (uint64, error) {
	return readBalance(t.batch, id)
}

// Transfer implements the Bank interface.
func (t *Txn) Transfer(from, to ID, amount uint64) error {
	// check accounts
	if from == to {
		return ErrSelfTransfer
	}

	// read balances
	source, err := readBalance(t.batch, from)
	if err != nil {
		return err
	}
	target, err := readBalance(t.batch, to)
	if err != nil {
		return err
	}

	// check balances
	if source < amount {
		return ErrInsufficientBalance
	}
	sum, carry := bits.Add64(target, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}

	// write balances
	err = writeBalance(t.batch, from, source-amount)
	if err != nil {
		return err
	}
	err = writeBalance(t.batch, to, sum)
	if err != nil {
		return err
	}

	return nil
}

// Credit will add amount to the specified balance.
func (t *Txn) Credit(id ID, amount uint64) error {
	// read balance
	balance, err := readBalance(t.batch, id)
	if err != nil {
		return err
	}

	// add amount
	sum, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}

	return writeBalance(t.batch, id, sum)
}

// Account will load the specified account.
func (t *Txn) Account(key ID) (*Account, error) {
	return loadAccount(t.batch, key)
}

// SetAccount will write the specified account.
func (t *Txn) SetAccount(account *Account) error {
	// encode account
	value := make([]byte, IDSize+len(account.Data))
	copy(value, account.Program[:])
	copy(value[IDSize:], account.Data)

	return t.batch.Set(makeKey(accountPrefix, account.Key[:]), value, nil)
}

// Commit will commit the transaction.
func (t *Txn) Commit() error {
	return t.batch.Commit(defaultWriteOptions)
}

// Close will release the transaction and discard uncommitted writes.
func (t *Txn) Close() {
	// check flag
	if t.closed {
		return
	}

	// close batch
	_ = t.batch.Close()

	// release mutex
	t.closed = true
	t.store.mutex.Unlock()
}

func loadAccount(r pebble.Reader, key ID) (*Account, error) {
	// read value
	value, ok, err := readValue(r, makeKey(accountPrefix, key[:]))
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrAccountNotFound
	}

	// check length
	if len(value) < IDSize {
		return nil, fmt.Errorf("custody: invalid account %s", key.Short())
	}

	// decode account
	account := &Account{
		Key:  key,
		Data: value[IDSize:],
	}
	copy(account.Program[:], value[:IDSize])

	return account, nil
}
