package storage

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex SHA-256 of an encoded Item. Upserts compare it to skip
// rewriting unchanged rows.
func ContentHash(document []byte) string {
	sum := sha256.Sum256(document)

	return hex.EncodeToString(sum[:])
}
