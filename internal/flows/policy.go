package flows

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CredentialPolicy bounds user-supplied credential input.
type CredentialPolicy struct {
	UsernameMin int
	UsernameMax int
	PasswordMin int
	PasswordMax int
	// PasswordMaxBytes caps the encoded length accepted by the hasher; 0 means
	// no byte cap.
	PasswordMaxBytes int
}

// DefaultCredentialPolicy returns the stock input bounds.
func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{
		UsernameMin: 3,
		UsernameMax: 50,
		PasswordMin: 8,
		PasswordMax: 100,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckEmail requires exactly one @ with a non-empty local part and a dotted
// or single-label domain.
func (p CredentialPolicy) CheckEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return errors.New("invalid email address")
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return errors.New("invalid email address")
	}
	return nil
}

// CheckUsername enforces length and the [A-Za-z0-9_] alphabet.
func (p CredentialPolicy) CheckUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < p.UsernameMin || n > p.UsernameMax {
		return fmt.Errorf("username must be %d-%d characters", p.UsernameMin, p.UsernameMax)
	}
	for _, r := range username {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return errors.New("username may only contain letters, digits and underscores")
		}
	}
	return nil
}

// CheckPassword enforces character and byte length bounds.
func (p CredentialPolicy) CheckPassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.PasswordMin || n > p.PasswordMax {
		return fmt.Errorf("password must be %d-%d characters", p.PasswordMin, p.PasswordMax)
	}
	if p.PasswordMaxBytes > 0 && len(password) > p.PasswordMaxBytes {
		return fmt.Errorf("password must not exceed %d bytes", p.PasswordMaxBytes)
	}
	return nil
}
