package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ResolutionID computes a deterministic resolution_id using SHA256.
// Formula: SHA256(mint|slot|resolved_at), truncated.
// Returns the first 16 hex characters.
func ResolutionID(mint string, slot uint64, resolvedAt int64) string {
	data := fmt.Sprintf("%s|%d|%d", mint, slot, resolvedAt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
