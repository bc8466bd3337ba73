package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	resetTokenSize  = 32
	dummySecretSize = 24
)

// NewResetToken returns a URL-safe reset token carrying 256 bits of entropy.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewDummySecret returns a random string used to build the timing-equalization
// hash for logins against unknown accounts.
func NewDummySecret() (string, error) {
	var raw [dummySecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(raw[:]), nil
}
