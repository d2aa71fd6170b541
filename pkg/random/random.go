// Package random generates the identifiers and credentials used to correlate
// authentication sessions: hex tokens from crypto/rand and UUIDs for generic
// unique ids. Every session correlation key (internal state, redirect id,
// authorization code, bearer token) comes from Hex, so uniqueness rests on
// CSPRNG entropy rather than a store-level constraint.
package random

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Hex returns n cryptographically random bytes hex-encoded (2n characters).
// A failing CSPRNG leaves no safe way to issue credentials, so Hex panics
// instead of returning an error.
func Hex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("random: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// UUID returns a random UUIDv4 string.
func UUID() string {
	return uuid.NewString()
}

// ClientID returns a new public application identifier (16 bytes hex).
func ClientID() string {
	return Hex(16)
}

// ClientSecret returns a new confidential application secret (32 bytes hex).
func ClientSecret() string {
	return Hex(32)
}
