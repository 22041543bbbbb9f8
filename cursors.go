package custody

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Cursors stores named journal positions. A position is the last sequence a
// reader has fully processed.
type Cursors struct {
	db *DB
}

// NewCursors will create and return a cursor table that stores positions in
// the provided db.
func NewCursors(db *DB) *Cursors {
	return &Cursors{
		db: db,
	}
}

// Set will write the specified position.
func (c *Cursors) Set(name string, position uint64) error {
	// encode position
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, position)

	return c.db.Set(c.makeKey(name), value, defaultWriteOptions)
}

// Get will read the specified position.
func (c *Cursors) Get(name string) (uint64, bool, error) {
	// read value
	value, ok, err := readValue(c.db, c.makeKey(name))
	if err != nil || !ok {
		return 0, false, err
	}

	// check length
	if len(value) != 8 {
		return 0, false, fmt.Errorf("custody: invalid cursor %q", name)
	}

	return binary.BigEndian.Uint64(value), true, nil
}

// Delete will remove the specified position.
func (c *Cursors) Delete(name string) error {
	return c.db.Delete(c.makeKey(name), defaultWriteOptions)
}

// All will return all stored positions.
func (c *Cursors) All() (map[string]uint64, error) {
	// create iterator
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{cursorPrefix},
		UpperBound: []byte{cursorPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// collect positions
	positions := map[string]uint64{}
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Value()) != 8 {
			return nil, fmt.Errorf("custody: invalid cursor %q", iter.Key()[1:])
		}
		positions[string(iter.Key()[1:])] = binary.BigEndian.Uint64(iter.Value())
	}

	return positions, iter.Error()
}

// Min will return the lowest stored position.
func (c *Cursors) Min() (uint64, bool, error) {
	// get positions
	positions, err := c.All()
	if err != nil {
		return 0, false, err
	}

	// find minimum
	var lowest uint64
	var found bool
	for _, position := range positions {
		if !found || position < lowest {
			lowest = position
			found = true
		}
	}

	return lowest, found, nil
}

func (c *Cursors) makeKey(name string) []byte {
	return makeKey(cursorPrefix, []byte(name))
}
