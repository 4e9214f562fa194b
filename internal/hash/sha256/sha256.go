// Package sha256 fingerprints snapshot projections with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortLen is the number of hex characters kept by Short.
const shortLen = 12

// Hasher implements monitor.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Short abbreviates a hex digest for log lines and terminal output.
func Short(digest string) string {
	if len(digest) <= shortLen {
		return digest
	}
	return digest[:shortLen]
}
