package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashString returns the hex-encoded BLAKE2b-256 digest of s.
func HashString(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
