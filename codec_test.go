package custody

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLayout(t *testing.T) {
	ledger := &Ledger{
		Owner: testAuthority,
		Entries: []LockEntry{
			{User: alice, Amount: 0x0102},
		},
	}

	buf := bytes.Repeat([]byte{0xFF}, EncodedSize(2))
	err := Encode(ledger, buf)
	assert.NoError(t, err)

	assert.Equal(t, testAuthority[:], buf[0:32])
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, buf[32:40])
	assert.Equal(t, alice[:], buf[40:72])
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0}, buf[72:80])
	assert.Equal(t, make([]byte, RecordSize), buf[80:])
}

func TestEncodeDecode(t *testing.T) {
	table := []*Ledger{
		{},
		{Owner: testAuthority},
		{Owner: testAuthority, Entries: []LockEntry{
			{User: alice, Amount: 1},
		}},
		{Owner: testAuthority, Entries: []LockEntry{
			{User: carol, Amount: math.MaxUint64},
			{User: alice, Amount: 100},
			{User: bob, Amount: 42},
		}},
	}

	for i, item := range table {
		buf := make([]byte, EncodedSize(len(item.Entries)+i))
		err := Encode(item, buf)
		assert.NoError(t, err, "test %d", i)

		ledger, err := Decode(buf)
		assert.NoError(t, err, "test %d", i)
		assert.Equal(t, item, ledger, "test %d", i)
	}
}

func TestEncodeBufferTooSmall(t *testing.T) {
	ledger := &Ledger{
		Owner: testAuthority,
		Entries: []LockEntry{
			{User: alice, Amount: 1},
			{User: bob, Amount: 2},
		},
	}

	buf := bytes.Repeat([]byte{0xAA}, EncodedSize(1))
	err := Encode(ledger, buf)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, EncodedSize(1)), buf)

	err = Encode(&Ledger{}, make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestDecodeMalformed(t *testing.T) {
	// short header
	_, err := Decode(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	// count beyond buffer
	buf := make([]byte, EncodedSize(2))
	binary.LittleEndian.PutUint64(buf[32:], 3)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	// count overflowing the record size
	binary.LittleEndian.PutUint64(buf[32:], math.MaxUint64)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	// zero amount
	binary.LittleEndian.PutUint64(buf[32:], 1)
	copy(buf[40:], alice[:])
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	// duplicate user
	binary.LittleEndian.PutUint64(buf[32:], 2)
	binary.LittleEndian.PutUint64(buf[72:], 5)
	copy(buf[80:], alice[:])
	binary.LittleEndian.PutUint64(buf[112:], 7)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	// distinct users are fine
	copy(buf[80:], bob[:])
	ledger, err := Decode(buf)
	assert.NoError(t, err)
	assert.Equal(t, []LockEntry{
		{User: alice, Amount: 5},
		{User: bob, Amount: 7},
	}, ledger.Entries)
}

func TestDecodeZeroBuffer(t *testing.T) {
	ledger, err := Decode(make([]byte, EncodedSize(4)))
	assert.NoError(t, err)
	assert.Equal(t, &Ledger{}, ledger)
}

func TestMaxEntries(t *testing.T) {
	assert.Equal(t, 0, MaxEntries(0))
	assert.Equal(t, 0, MaxEntries(HeaderSize-1))
	assert.Equal(t, 0, MaxEntries(HeaderSize))
	assert.Equal(t, 0, MaxEntries(EncodedSize(1)-1))
	assert.Equal(t, 1, MaxEntries(EncodedSize(1)))
	assert.Equal(t, 10, MaxEntries(EncodedSize(10)+RecordSize-1))
}

func BenchmarkEncode(b *testing.B) {
	ledger := &Ledger{Owner: testAuthority}
	for i := 0; i < 100; i++ {
		ledger.Entries = append(ledger.Entries, LockEntry{
			User:   DeriveID(string(rune('a' + i))),
			Amount: uint64(i + 1),
		})
	}

	buf := make([]byte, EncodedSize(100))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := Encode(ledger, buf)
		if err != nil {
			panic(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	ledger := &Ledger{Owner: testAuthority}
	for i := 0; i < 100; i++ {
		ledger.Entries = append(ledger.Entries, LockEntry{
			User:   DeriveID(string(rune('a' + i))),
			Amount: uint64(i + 1),
		})
	}

	buf := make([]byte, EncodedSize(100))
	err := Encode(ledger, buf)
	if err != nil {
		panic(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := Decode(buf)
		if err != nil {
			panic(err)
		}
	}
}
