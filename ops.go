package custody

import (
	"fmt"
	"math"
)

// Bank moves value between accounts outside the ledger. A failed transfer must
// not have any effect.
type Bank interface {
	Balance(account ID) (uint64, error)
	Transfer(from, to ID, amount uint64) error
}

// Env is the environment an operation runs in.
type Env struct {
	// The bank used to move value.
	Bank Bank

	// The account that holds the locked value.
	Custody ID

	// The maximum number of entries the ledger may hold. Unlimited disables
	// the limit.
	Capacity int
}

// Unlimited is the capacity of a ledger without an entry limit.
const Unlimited = -1

// Lock will move amount from the user into custody and record it against the
// user. The ledger is only mutated after the transfer succeeded.
func Lock(ledger *Ledger, env Env, user ID, amount uint64) error {
	// check amount
	if amount == 0 {
		return ErrInvalidAmount
	}

	// check resulting entry
	entry := ledger.Find(user)
	if entry != nil && entry.Amount > math.MaxUint64-amount {
		return fmt.Errorf("locking %d on top of %d: %w", amount, entry.Amount, ErrOverflow)
	} else if entry == nil && env.Capacity >= 0 && len(ledger.Entries) >= env.Capacity {
		return fmt.Errorf("ledger is full with %d entries: %w", len(ledger.Entries), ErrBufferTooSmall)
	}

	// check funds
	balance, err := env.Bank.Balance(user)
	if err != nil {
		return err
	} else if balance < amount {
		return fmt.Errorf("balance %d is below %d: %w", balance, amount, ErrInsufficientFunds)
	}

	// move funds
	err = env.Bank.Transfer(user, env.Custody, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	// record lock
	err = ledger.Upsert(user, amount)
	if err != nil {
		return err
	}

	return nil
}

// Unlock will move amount out of custody back to the user and remove it from
// the user's entry. The ledger is only mutated after the transfer succeeded.
func Unlock(ledger *Ledger, env Env, user ID, amount uint64) error {
	// check amount
	if amount == 0 {
		return ErrInvalidAmount
	}

	// find entry
	entry := ledger.Find(user)
	if entry == nil {
		return ErrLockNotFound
	} else if amount > entry.Amount {
		return fmt.Errorf("unlocking %d of %d: %w", amount, entry.Amount, ErrInsufficientLocked)
	}

	// move funds
	err := env.Bank.Transfer(env.Custody, user, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	// release lock
	err = ledger.Decrement(user, amount)
	if err != nil {
		return err
	}

	return nil
}
