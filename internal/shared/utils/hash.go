package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm names a digest
type HashAlgorithm string

const (
	SHA256  HashAlgorithm = "sha256"
	BLAKE2b HashAlgorithm = "blake2b"
)

// Hasher fingerprints documents so identical composites are recognised
// without comparing them byte by byte
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a hasher. Unknown algorithms fall back to SHA256.
func NewHasher(algorithm HashAlgorithm) *Hasher {
	if algorithm != BLAKE2b {
		algorithm = SHA256
	}
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher uses BLAKE2b-256
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE2b)
}

// Algorithm reports the configured algorithm
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash computes a hex digest of data
func (h *Hasher) Hash(data []byte) string {
	if h.algorithm == BLAKE2b {
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes a hex digest of s
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// Short returns the first 8 characters of a digest for display
func Short(digest string) string {
	if len(digest) < 8 {
		return digest
	}
	return digest[:8]
}
