package kademlia

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame_RoundTrips(t *testing.T) {
	req := Request{Kind: KindStore, Target: RandomID().String(), Value: []byte("payload")}

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, req))

	var got Request
	require.NoError(t, readFrame(bufio.NewReader(&buf), &got))
	assert.Equal(t, req.Kind, got.Kind)
	assert.Equal(t, req.Target, got.Target)
	assert.Equal(t, req.Value, got.Value)
}

func TestRequestValidate_Ping(t *testing.T) {
	assert.NoError(t, (Request{Kind: KindPing}).validate())
}

func TestRequestValidate_UnknownKind(t *testing.T) {
	assert.Error(t, (Request{Kind: "bogus"}).validate())
}

func TestRequestValidate_FindNodeRequiresTarget(t *testing.T) {
	assert.Error(t, (Request{Kind: KindFindNode}).validate())
}

func TestRequestValidate_StoreRequiresValue(t *testing.T) {
	req := Request{Kind: KindStore, Target: RandomID().String()}
	assert.Error(t, req.validate())
}

func TestRequestValidate_RejectsMalformedTarget(t *testing.T) {
	req := Request{Kind: KindFindValue, Target: "not-hex"}
	assert.Error(t, req.validate())
}

func TestWireNodeContactRoundTrip(t *testing.T) {
	c := NewContact(RandomID(), "127.0.0.1:9000")
	w := toWireNode(c)
	got, err := w.toContact()
	require.NoError(t, err)
	assert.True(t, got.ID.Equal(c.ID))
	assert.Equal(t, c.Address, got.Address)
}
