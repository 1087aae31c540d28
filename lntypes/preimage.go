package lntypes

import (
	"crypto/sha256"
	"encoding/hex"
)

// PreimageSize is the size in bytes of a PaymentPreimage.
const PreimageSize = 32

// Preimage is the 32-byte secret whose SHA-256 commits a payment to its
// Hash.
type Preimage [PreimageSize]byte

// MakePreimage constructs a new Preimage from a byte slice.
func MakePreimage(newPreimage []byte) (Preimage, error) {
	var p Preimage
	h, err := MakeHash(newPreimage)
	if err != nil {
		return p, err
	}
	copy(p[:], h[:])
	return p, nil
}

// Hash returns the hash that is committed to by the preimage.
func (p Preimage) Hash() Hash {
	return Hash(sha256.Sum256(p[:]))
}

// Matches returns true if the preimage's hash matches the given hash.
func (p Preimage) Matches(h Hash) bool {
	return p.Hash() == h
}

// String returns the hex-encoded representation of the preimage.
func (p Preimage) String() string {
	return hex.EncodeToString(p[:])
}
