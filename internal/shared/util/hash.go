package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of the exact byte content of s.
// It is the cache key for analysis results: no case folding or whitespace
// trimming is applied, so callers needing normalization must normalize first.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
