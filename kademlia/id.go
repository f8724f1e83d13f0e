package kademlia

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// IDLength is the width of a Kademlia identifier in bytes: 256 bits.
const IDLength = 32

// ID is a 256-bit Kademlia identifier. Node identities are drawn randomly;
// content key identifiers are derived from the key by IDFromKey.
type ID [IDLength]byte

// IDFromHex decodes a 64-character hex string into an ID. A string that is
// not valid hex or does not decode to exactly IDLength bytes yields the
// zero ID and a non-nil error.
func IDFromHex(s string) (ID, error) {
	var id ID
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(decoded) != IDLength {
		return id, fmt.Errorf("kademlia: invalid id length: %d bytes, want %d", len(decoded), IDLength)
	}
	copy(id[:], decoded)
	return id, nil
}

// RandomID draws a fresh, cryptographically-unpredictable 256-bit ID. Used
// once per process to mint a node's own identity at startup.
func RandomID() ID {
	var id ID
	// crypto/rand has no ecosystem substitute that improves on it for this;
	// see DESIGN.md.
	if _, err := rand.Read(id[:]); err != nil {
		panic("kademlia: failed to read random bytes: " + err.Error())
	}
	return id
}

// IDFromKey derives a stable 256-bit identifier for an external string key.
// Equal keys always yield equal IDs; distinct keys are collision-resistant
// in practice because the underlying digest is BLAKE2b-256.
func IDFromKey(key string) ID {
	sum := blake2b.Sum256([]byte(key))
	var id ID
	copy(id[:], sum[:])
	return id
}

// Less orders IDs lexicographically over their raw bytes. Used only as a
// tie-breaker when two candidates are equidistant from a lookup target.
func (id ID) Less(other ID) bool {
	for i := 0; i < IDLength; i++ {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Equal reports whether the two IDs are identical.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Xor returns the bitwise XOR distance between id and other.
func (id ID) Xor(other ID) ID {
	var out ID
	for i := 0; i < IDLength; i++ {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// IsZero reports whether the XOR result (or any ID) is the all-zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String hex-encodes the ID, lowercase, 64 characters.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// DistanceClass returns the index (0..255) of the most significant set bit
// of a XOR b, counting from the most significant bit of byte 0 as index 0.
// The second return value is false iff a == b, in which case the distance
// class is undefined and the caller must not treat the returned int as
// meaningful.
func DistanceClass(a, b ID) (int, bool) {
	d := a.Xor(b)
	if d.IsZero() {
		return 0, false
	}
	for i := 0; i < IDLength; i++ {
		if d[i] == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if d[i]&(0x80>>uint(bit)) != 0 {
				return i*8 + bit, true
			}
		}
	}
	// unreachable: d is non-zero, so some byte is non-zero
	return IDLength*8 - 1, true
}

// Closer reports whether a is strictly closer to target than b under the
// XOR metric, breaking ties lexicographically on the raw bytes.
func Closer(target, a, b ID) bool {
	da := target.Xor(a)
	db := target.Xor(b)
	for i := 0; i < IDLength; i++ {
		if da[i] != db[i] {
			return da[i] < db[i]
		}
	}
	return a.Less(b)
}
