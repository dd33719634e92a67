// Package shared holds small helpers used by both the client and the
// server: random token material and wiping of sensitive buffers.
package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString returns size random bytes hex-encoded, so the result
// is 2*size characters long. Used for refresh token values.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray zeroes the slice in place. Call it on password buffers
// as soon as they have been consumed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
