package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names the scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost is the work factor applied when Config.BcryptCost is zero.
const DefaultBcryptCost = 12

// MaxBcryptBytes is the longest input bcrypt accepts.
const MaxBcryptBytes = 72

// ErrPasswordTooLong is returned by Hash when bcrypt would truncate the input.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Config selects the hashing scheme and its cost.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher hashes new passwords with the configured algorithm and verifies
// hashes produced by any supported algorithm.
type Hasher struct {
	algorithm  Algorithm
	bcryptCost int
	argon      argon2Scheme
}

// New validates cfg and returns a Hasher. A zero Config hashes with bcrypt at
// DefaultBcryptCost.
func New(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.Argon2 == (Argon2Params{}) {
		cfg.Argon2 = DefaultArgon2Params()
	}

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, errors.New("password bcrypt cost must be between 4 and 31")
		}
	case AlgorithmArgon2id:
		if err := validateArgon2(cfg.Argon2); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported password algorithm")
	}

	return &Hasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon:      argon2Scheme{params: cfg.Argon2},
	}, nil
}

// Algorithm reports the scheme used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// MaxPasswordBytes is the longest password Hash accepts, or 0 when unbounded.
func (h *Hasher) MaxPasswordBytes() int {
	if h.algorithm == AlgorithmBcrypt {
		return MaxBcryptBytes
	}
	return 0
}

// Hash returns an encoded hash that embeds its salt and cost parameters.
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon.hash(password)
	}
	if len(password) > MaxBcryptBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches encoded. Malformed or unsupported
// hashes yield false.
func (h *Hasher) Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return h.argon.verify(password, encoded)
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	default:
		return false
	}
}

// NeedsRehash reports whether encoded was produced by a different algorithm or
// with weaker parameters than the Hasher is configured for.
func (h *Hasher) NeedsRehash(encoded string) bool {
	switch h.algorithm {
	case AlgorithmArgon2id:
		if !strings.HasPrefix(encoded, argon2Prefix) {
			return true
		}
		return h.argon.outdated(encoded)
	default:
		if !isBcrypt(encoded) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(encoded))
		if err != nil {
			return true
		}
		return cost < h.bcryptCost
	}
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
