package custody

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveID(t *testing.T) {
	assert.Equal(t, DeriveID("alice"), alice)
	assert.NotEqual(t, alice, bob)
	assert.False(t, alice.Zero())
	assert.True(t, ID{}.Zero())
}

func TestParseID(t *testing.T) {
	id, err := ParseID(alice.String())
	assert.NoError(t, err)
	assert.Equal(t, alice, id)

	_, err = ParseID("zz")
	assert.Error(t, err)

	_, err = ParseID("0102")
	assert.Error(t, err)
}

func TestResolveID(t *testing.T) {
	assert.Equal(t, alice, ResolveID(alice.String()))
	assert.Equal(t, alice, ResolveID("alice"))

	str := strings.Repeat("x", IDSize*2)
	assert.Equal(t, DeriveID(str), ResolveID(str))
}

func TestIDString(t *testing.T) {
	var id ID
	id[0] = 0xAB
	id[3] = 0x01
	assert.Equal(t, "ab000001"+strings.Repeat("00", IDSize-4), id.String())
	assert.Equal(t, "ab000001", id.Short())
}
