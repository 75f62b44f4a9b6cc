package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Draw derives a reproducible 64-bit value from the colon-joined parts.
// Callers supply any entropy as one of the parts; the same parts always
// produce the same draw.
func Draw(parts ...string) uint64 {
	h := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return binary.BigEndian.Uint64(h[:8])
}
