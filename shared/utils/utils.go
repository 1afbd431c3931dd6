package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex sha256 of content, the hash the tracked-file
// index stores.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
