package custody

import (
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var defaultWriteOptions = pebble.Sync

// The key space prefixes.
const (
	accountPrefix byte = iota
	balancePrefix
	journalPrefix
	cursorPrefix
)

// DB is the database backing the store and the journal.
type DB = pebble.DB

// OpenDB will open or create the specified db.
func OpenDB(directory string) (*DB, error) {
	// check directory
	if directory == "" {
		panic("custody: missing directory")
	}

	// ensure directory
	err := os.MkdirAll(directory, 0777)
	if err != nil {
		return nil, err
	}

	// open db
	db, err := pebble.Open(directory, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// OpenMemoryDB will open an in-memory db.
func OpenMemoryDB() (*DB, error) {
	return pebble.Open("", &pebble.Options{
		FS: vfs.NewMem(),
	})
}

func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}

func readValue(r pebble.Reader, key []byte) ([]byte, bool, error) {
	// get value
	value, closer, err := r.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	// copy value
	out := append([]byte(nil), value...)

	// release value
	err = closer.Close()
	if err != nil {
		return nil, false, err
	}

	return out, true, nil
}
