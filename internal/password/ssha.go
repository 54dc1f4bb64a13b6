package password

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	sshaPrefix  = "{SSHA}"
	sshaSaltLen = 8
	sshaSumLen  = sha1.Size // 20
)

type sshaHasher struct {
	saltLen int
}

// NewSSHAHasher builds an SSHA hasher with the conventional 8-byte salt.
func NewSSHAHasher() Hasher {
	return &sshaHasher{saltLen: sshaSaltLen}
}

func (h *sshaHasher) Algorithm() Algorithm { return SSHA }

func (h *sshaHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: failed to generate ssha salt: %w", err)
	}
	sum := sshaDigest(password, salt)
	payload := append(append([]byte{}, sum...), salt...)
	return sshaPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Verify recomputes the digest and compares it to the stored one in constant time.
func (h *sshaHasher) Verify(password, hash string) (bool, error) {
	sum, salt, err := decodeSSHA(hash)
	if err != nil {
		return false, fmt.Errorf("password: failed to parse ssha hash: %w", err)
	}
	candidate := sshaDigest(password, salt)
	return subtle.ConstantTimeCompare(candidate, sum) == 1, nil
}

// IsHash reports whether value carries the {SSHA} prefix, decodes as base64, and is long
// enough to contain at least a full SHA-1 digest plus a non-empty salt.
func (h *sshaHasher) IsHash(value string) bool {
	if !strings.HasPrefix(value, sshaPrefix) {
		return false
	}
	_, _, err := decodeSSHA(value)
	return err == nil
}

func sshaDigest(password string, salt []byte) []byte {
	sum := sha1.New()
	sum.Write([]byte(password))
	sum.Write(salt)
	return sum.Sum(nil)
}

func decodeSSHA(hash string) (sum, salt []byte, err error) {
	if !strings.HasPrefix(hash, sshaPrefix) {
		return nil, nil, fmt.Errorf("missing {SSHA} prefix")
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hash, sshaPrefix))
	if err != nil {
		return nil, nil, fmt.Errorf("malformed base64 payload: %w", err)
	}
	if len(payload) < sshaSumLen+1 {
		return nil, nil, fmt.Errorf("decoded payload too short: got %d bytes, need at least %d", len(payload), sshaSumLen+1)
	}
	return payload[:sshaSumLen], payload[sshaSumLen:], nil
}
