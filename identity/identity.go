// Package identity verifies external identity-provider assertions.
//
// A [Verifier] turns a raw credential (an OIDC ID token) into an [Assertion]
// after checking its signature, audience, expiry and issuer. The engine then
// reconciles the assertion with a local account.
package identity

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks -source=identity.go Verifier

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// ErrVerification is wrapped by every Verifier failure.
var ErrVerification = errors.New("identity verification failed")

// ErrUntrustedIssuer is returned when the assertion issuer is not allow-listed.
var ErrUntrustedIssuer = errors.New("untrusted identity issuer")

// GoogleIssuers are the issuer strings Google places in ID tokens.
var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Assertion is a verified statement about an external identity.
type Assertion struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// DisplayName returns Name, falling back to the local part of Email.
func (a Assertion) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(a.Email, "@")
	return local
}

// Verifier validates a raw external credential.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Assertion, error)
}

// TrustedIssuer reports whether issuer is in the allow-list.
func TrustedIssuer(issuer string, trusted []string) bool {
	return issuer != "" && slices.Contains(trusted, issuer)
}
