package identity

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Credential schemes accepted by NewHasher.
const (
	SchemeBcrypt    = "bcrypt"
	SchemePlaintext = "plaintext"
)

// CredentialHasher turns a password into the string stored under
// "user-passwords" and checks a password against it.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Matches(stored, password string) bool
}

// PlaintextHasher stores the password unchanged. It exists for parity with
// stores written by older clients and for tests; do not use it in production.
type PlaintextHasher struct{}

func (PlaintextHasher) Hash(password string) (string, error) { return password, nil }

func (PlaintextHasher) Matches(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// BcryptHasher stores a bcrypt hash of the password.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (BcryptHasher) Matches(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// NewHasher returns the hasher for scheme.
func NewHasher(scheme string) (CredentialHasher, error) {
	switch scheme {
	case "", SchemeBcrypt:
		return BcryptHasher{}, nil
	case SchemePlaintext:
		return PlaintextHasher{}, nil
	default:
		return nil, errors.New("unknown credential scheme: " + scheme)
	}
}
