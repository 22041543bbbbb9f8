package custody

import (
	"fmt"
	"math/bits"
	"slices"
)

// LockEntry is the locked balance of a single user.
type LockEntry struct {
	User   ID
	Amount uint64
}

// Ledger is the state of a custody account: its owner and the outstanding
// locked balances. At rest, every entry has a positive amount and no two
// entries share a user.
type Ledger struct {
	Owner   ID
	Entries []LockEntry
}

// Find returns the entry of the specified user or nil.
func (l *Ledger) Find(user ID) *LockEntry {
	for i := range l.Entries {
		if l.Entries[i].User == user {
			return &l.Entries[i]
		}
	}

	return nil
}

// Locked returns the amount locked by the specified user.
func (l *Ledger) Locked(user ID) uint64 {
	if entry := l.Find(user); entry != nil {
		return entry.Amount
	}

	return 0
}

// Upsert adds delta to the entry of the specified user or creates a new entry.
// The ledger is left unchanged if an error is returned.
func (l *Ledger) Upsert(user ID, delta uint64) error {
	// increment existing entry
	if entry := l.Find(user); entry != nil {
		sum, carry := bits.Add64(entry.Amount, delta, 0)
		if carry != 0 {
			return fmt.Errorf("locking %d on top of %d: %w", delta, entry.Amount, ErrOverflow)
		}

		entry.Amount = sum

		return nil
	}

	// new entries must not be empty
	if delta == 0 {
		return ErrInvalidAmount
	}

	// add entry
	l.Entries = append(l.Entries, LockEntry{
		User:   user,
		Amount: delta,
	})

	return nil
}

// Decrement subtracts amount from the entry of the specified user and removes
// the entry once it reaches zero. The ledger is left unchanged if an error is
// returned.
func (l *Ledger) Decrement(user ID, amount uint64) error {
	// find entry
	index := slices.IndexFunc(l.Entries, func(e LockEntry) bool {
		return e.User == user
	})
	if index < 0 {
		return ErrLockNotFound
	}

	// check amount
	entry := &l.Entries[index]
	if amount > entry.Amount {
		return fmt.Errorf("unlocking %d of %d: %w", amount, entry.Amount, ErrInsufficientLocked)
	}

	// subtract
	entry.Amount -= amount

	// prune empty entry
	if entry.Amount == 0 {
		l.Entries = slices.Delete(l.Entries, index, index+1)
	}

	return nil
}

// Total returns the sum of all locked amounts.
func (l *Ledger) Total() (uint64, error) {
	var total uint64
	for _, entry := range l.Entries {
		var carry uint64
		total, carry = bits.Add64(total, entry.Amount, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
	}

	return total, nil
}

// Validate checks the at rest invariants of the ledger.
func (l *Ledger) Validate() error {
	seen := make(map[ID]struct{}, len(l.Entries))
	for i, entry := range l.Entries {
		// check amount
		if entry.Amount == 0 {
			return fmt.Errorf("entry %d has no amount", i)
		}

		// check uniqueness
		if _, ok := seen[entry.User]; ok {
			return fmt.Errorf("entry %d duplicates user %s", i, entry.User.Short())
		}
		seen[entry.User] = struct{}{}
	}

	return nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Owner:   l.Owner,
		Entries: slices.Clone(l.Entries),
	}
}
