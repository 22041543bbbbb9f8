package custody

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

func readBalance(r pebble.Reader, id ID) (uint64, error) {
	// read value
	value, ok, err := readValue(r, makeKey(balancePrefix, id[:]))
	if err != nil {
		return 0, err
	} else if !ok {
		return 0, nil
	}

	// check length
	if len(value) != 8 {
		return 0, fmt.Errorf("custody: invalid balance of %s", id.Short())
	}

	return binary.BigEndian.Uint64(value), nil
}

func writeBalance(w pebble.Writer, id ID, balance uint64) error {
	// get key
	key := makeKey(balancePrefix, id[:])

	// unset if empty
	if balance == 0 {
		return w.Delete(key, nil)
	}

	// encode balance
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, balance)

	return w.Set(key, value, nil)
}
