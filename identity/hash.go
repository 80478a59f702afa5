package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashLen is the number of hex characters kept from the SHA-256 digest.
const hashLen = 16

// ContentHash returns a short, fixed-length hex digest of data.
// Identical content always produces an identical hash.
func ContentHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// IdempotencyKey derives a deterministic key from the resolved identity,
// the operation, its distinguishing parameter (section title or query, may
// be empty), and the content hash. Identical requests against unchanged
// upstream content always produce the same key.
func IdempotencyKey(ref RepoRef, operation, param, contentHash string) string {
	composite := strings.Join([]string{ref.String(), operation, param, contentHash}, "::")
	return ContentHash(composite)
}
