// Package password implements the password-hashing subsystem: a set of interchangeable
// hashers (bcrypt, Argon2id, SSHA) behind a single Manager that hashes new passwords with
// its preferred algorithm and verifies any of them by auto-detecting which one produced a
// given stored hash.
package password

import "fmt"

// Algorithm identifies a supported hashing scheme.
type Algorithm string

const (
	Argon2id Algorithm = "argon2id"
	Bcrypt   Algorithm = "bcrypt"
	SSHA     Algorithm = "ssha"
)

// String satisfies fmt.Stringer.
func (a Algorithm) String() string {
	return string(a)
}

// Hasher hashes and verifies passwords for one algorithm, and recognizes its own hashes.
type Hasher interface {
	Algorithm() Algorithm
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	IsHash(value string) bool
}

// Manager hashes new passwords with a preferred algorithm and verifies any password
// against a hash by trying each registered hasher's IsHash in order until one claims it.
// The registration order matters when two algorithms' IsHash checks could both match a
// degenerate value; bcrypt and SSHA have tight, low-ambiguity formats, so they are checked
// before Argon2id.
type Manager struct {
	preferred Algorithm
	hashers   []Hasher
	byAlgo    map[Algorithm]Hasher
}

// NewManager builds a Manager with the standard hasher set, preferring Argon2id for new
// hashes per OWASP's current password storage guidance.
func NewManager() *Manager {
	hashers := []Hasher{NewBcryptHasher(), NewSSHAHasher(), NewArgon2idHasher()}
	byAlgo := make(map[Algorithm]Hasher, len(hashers))
	for _, h := range hashers {
		byAlgo[h.Algorithm()] = h
	}
	return &Manager{preferred: Argon2id, hashers: hashers, byAlgo: byAlgo}
}

// Hash hashes password with the Manager's preferred algorithm.
func (m *Manager) Hash(password string) (string, error) {
	h, ok := m.byAlgo[m.preferred]
	if !ok {
		return "", fmt.Errorf("password: no hasher registered for preferred algorithm %q", m.preferred)
	}
	return h.Hash(password)
}

// Verify detects which algorithm produced hash and checks password against it. It returns
// an error only when no registered hasher recognizes the hash's format.
func (m *Manager) Verify(password, hash string) (bool, error) {
	h, err := m.DetectAlgorithm(hash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, hash)
}

// IsHashed reports whether value looks like the output of any registered hasher.
func (m *Manager) IsHashed(value string) bool {
	for _, h := range m.hashers {
		if h.IsHash(value) {
			return true
		}
	}
	return false
}

// DetectAlgorithm returns the hasher whose IsHash claims hash.
func (m *Manager) DetectAlgorithm(hash string) (Hasher, error) {
	for _, h := range m.hashers {
		if h.IsHash(hash) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("password: hash does not match any registered algorithm")
}

// ValidateStrength enforces the minimum password policy: length 8-128, and at least one
// lowercase letter, one uppercase letter, one digit, and one symbol from a fixed
// punctuation set.
func ValidateStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password: must be at least 8 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password: must be at most 128 characters")
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	const symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			for _, s := range symbols {
				if r == s {
					hasSymbol = true
					break
				}
			}
		}
	}
	switch {
	case !hasLower:
		return fmt.Errorf("password: must contain a lowercase letter")
	case !hasUpper:
		return fmt.Errorf("password: must contain an uppercase letter")
	case !hasDigit:
		return fmt.Errorf("password: must contain a digit")
	case !hasSymbol:
		return fmt.Errorf("password: must contain a symbol")
	}
	return nil
}
