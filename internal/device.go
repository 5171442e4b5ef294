package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeviceFingerprint derives a stable device id from client attributes when the
// caller did not supply one. The result is a hex SHA-256 prefix, so raw user-agent
// strings never end up in keys or logs.
func DeviceFingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:12])
}
