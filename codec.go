package custody

import (
	"encoding/binary"
	"fmt"
)

// The fixed layout of an encoded ledger:
//
//	[0:32]   owner
//	[32:40]  entry count (little endian)
//	[40:...] entries, each 32 byte user and 8 byte amount (little endian)
const (
	HeaderSize = IDSize + 8
	RecordSize = IDSize + 8
)

// EncodedSize returns the number of bytes needed to encode n entries.
func EncodedSize(n int) int {
	return HeaderSize + n*RecordSize
}

// MaxEntries returns the number of entries that fit a buffer of the specified
// size.
func MaxEntries(size int) int {
	if size < HeaderSize {
		return 0
	}

	return (size - HeaderSize) / RecordSize
}

// Decode will decode a ledger from the provided buffer.
func Decode(buf []byte) (*Ledger, error) {
	// check header
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("buffer of %d bytes has no header: %w", len(buf), ErrMalformedBuffer)
	}

	// read count
	count := binary.LittleEndian.Uint64(buf[IDSize:HeaderSize])
	if count > uint64(MaxEntries(len(buf))) {
		return nil, fmt.Errorf("buffer of %d bytes cannot hold %d entries: %w", len(buf), count, ErrMalformedBuffer)
	}

	// prepare ledger
	ledger := &Ledger{}
	copy(ledger.Owner[:], buf[:IDSize])

	// read entries
	if count > 0 {
		ledger.Entries = make([]LockEntry, int(count))
		for i := range ledger.Entries {
			offset := EncodedSize(i)
			copy(ledger.Entries[i].User[:], buf[offset:offset+IDSize])
			ledger.Entries[i].Amount = binary.LittleEndian.Uint64(buf[offset+IDSize : offset+RecordSize])
		}
	}

	// check invariants
	err := ledger.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrMalformedBuffer)
	}

	return ledger, nil
}

// Encode will encode the ledger into the provided buffer. Bytes following the
// last entry are zeroed. The buffer is not modified if an error is returned.
func Encode(ledger *Ledger, buf []byte) error {
	// check size
	size := EncodedSize(len(ledger.Entries))
	if size > len(buf) {
		return fmt.Errorf("%d entries need %d bytes, have %d: %w", len(ledger.Entries), size, len(buf), ErrBufferTooSmall)
	}

	// write header
	copy(buf[:IDSize], ledger.Owner[:])
	binary.LittleEndian.PutUint64(buf[IDSize:HeaderSize], uint64(len(ledger.Entries)))

	// write entries
	for i, entry := range ledger.Entries {
		offset := EncodedSize(i)
		copy(buf[offset:offset+IDSize], entry.User[:])
		binary.LittleEndian.PutUint64(buf[offset+IDSize:offset+RecordSize], entry.Amount)
	}

	// clear remainder
	clear(buf[size:])

	return nil
}
