// Package hash implements the password fingerprint scheme shared with
// clients: SHA-256 over password+salt, hex encoded. The server issues a
// random base64 salt during registration and login challenges; the client
// hashes locally and only the fingerprint crosses the wire.
package hash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// FingerprintLen is the length of a hex-encoded SHA-256 fingerprint.
const FingerprintLen = 64

// Fingerprint computes the hex SHA-256 digest of input concatenated with
// the salt.
func Fingerprint(input, salt string) string {
	sum := sha256.Sum256([]byte(input + salt))
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns a base64-encoded random salt of n raw bytes.
func GenerateSalt(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("hash: generating salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
