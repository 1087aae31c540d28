// Package lntypes holds the small 32-byte domain values that flow through
// the outbound payment engine: payment hashes, preimages and the generic
// hash type they're both built on. It mirrors the shape of
// github.com/lightningnetwork/lnd/lntypes, kept local to this module since
// the engine doesn't otherwise depend on the full lnd binary.
package lntypes

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size in bytes of a Hash.
const HashSize = 32

// Hash represents a generic 32-byte hash value.
type Hash [HashSize]byte

// MakeHash constructs a new Hash from a byte slice. It errors if the slice
// isn't exactly HashSize bytes long.
func MakeHash(newHash []byte) (Hash, error) {
	var h Hash
	if len(newHash) != HashSize {
		return h, fmt.Errorf("invalid hash length of %v, want %v",
			len(newHash), HashSize)
	}
	copy(h[:], newHash)
	return h, nil
}

// String returns the hex-encoded representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
