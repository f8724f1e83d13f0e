package kademlia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromHex_RoundTrips(t *testing.T) {
	id := RandomID()
	got, err := IDFromHex(id.String())
	require.NoError(t, err)
	assert.True(t, got.Equal(id))
}

func TestIDFromHex_RejectsWrongLength(t *testing.T) {
	_, err := IDFromHex("abcd")
	assert.Error(t, err)
}

func TestIDFromHex_RejectsNonHex(t *testing.T) {
	bad := make([]byte, IDLength*2)
	for i := range bad {
		bad[i] = 'z'
	}
	_, err := IDFromHex(string(bad))
	assert.Error(t, err)
}

func TestIDFromKey_Deterministic(t *testing.T) {
	a := IDFromKey("hello")
	b := IDFromKey("hello")
	assert.True(t, a.Equal(b), "IDFromKey must be deterministic for equal inputs")

	c := IDFromKey("world")
	assert.False(t, a.Equal(c), "distinct keys collided")
}

func TestDistanceClass_SelfIsUndefined(t *testing.T) {
	id := RandomID()
	_, ok := DistanceClass(id, id)
	assert.False(t, ok)
}

func TestDistanceClass_TopBitDiffers(t *testing.T) {
	var a, b ID
	a[0] = 0x80
	class, ok := DistanceClass(a, b)
	require.True(t, ok)
	assert.Equal(t, 0, class)
}

func TestDistanceClass_LastBitDiffers(t *testing.T) {
	var a, b ID
	a[IDLength-1] = 0x01
	class, ok := DistanceClass(a, b)
	require.True(t, ok)
	assert.Equal(t, IDLength*8-1, class)
}

func TestCloser_PicksSmallerXorDistance(t *testing.T) {
	var target, a, b ID
	a[0] = 0x01
	b[0] = 0xFF
	assert.True(t, Closer(target, a, b))
	assert.False(t, Closer(target, b, a))
}

func TestCloser_EqualIDsAreNeverCloser(t *testing.T) {
	var target ID
	a := RandomID()
	assert.False(t, Closer(target, a, a))
}
