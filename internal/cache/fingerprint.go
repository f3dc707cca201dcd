package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the deterministic digest of a content payload, used as
// the cache key. Identical bytes always yield identical fingerprints.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
