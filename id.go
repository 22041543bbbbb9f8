package custody

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// IDSize is the size of an identifier in bytes.
const IDSize = 32

// ID identifies an account, a user or a program.
type ID [IDSize]byte

// DeriveID will derive an identifier from the provided name.
func DeriveID(name string) ID {
	return blake3.Sum256([]byte(name))
}

// ParseID will parse a hex encoded identifier.
func ParseID(str string) (ID, error) {
	// decode string
	var id ID
	buf, err := hex.DecodeString(str)
	if err != nil {
		return id, fmt.Errorf("custody: invalid id: %w", err)
	}

	// check length
	if len(buf) != IDSize {
		return id, fmt.Errorf("custody: id is %d bytes, want %d", len(buf), IDSize)
	}

	// copy bytes
	copy(id[:], buf)

	return id, nil
}

// ResolveID will parse the provided string as a hex encoded identifier or
// derive one from it if it is not.
func ResolveID(str string) ID {
	// parse hex
	if len(str) == IDSize*2 {
		if id, err := ParseID(str); err == nil {
			return id
		}
	}

	return DeriveID(str)
}

// String will return the hex encoded identifier.
func (i ID) String() string {
	return hex.EncodeToString(i[:])
}

// Short returns the first eight hex characters.
func (i ID) Short() string {
	return hex.EncodeToString(i[:4])
}

// Zero returns whether the identifier is unset.
func (i ID) Zero() bool {
	return i == ID{}
}
