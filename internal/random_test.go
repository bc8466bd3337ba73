package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewResetTokenIsURLSafeAndUnique(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		token, err := NewResetToken()
		if err != nil {
			t.Fatalf("NewResetToken failed: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token is not raw url base64: %v", err)
		}
		if len(raw) != resetTokenSize {
			t.Fatalf("expected %d bytes, got %d", resetTokenSize, len(raw))
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestNewDummySecret(t *testing.T) {
	a, err := NewDummySecret()
	if err != nil {
		t.Fatalf("NewDummySecret failed: %v", err)
	}
	b, _ := NewDummySecret()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty secrets, got %q and %q", a, b)
	}
}
