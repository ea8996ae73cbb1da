// Package internal holds crypto-random helpers shared by the engine.
package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const refreshTokenBytes = 32

// NewRefreshToken returns 256 bits of cryptographic randomness encoded as
// standard base64. The value is opaque: no claims, no structure, compared
// verbatim against the copy stored on the user record.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
