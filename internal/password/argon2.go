package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2idParams are OWASP's current minimum recommendation for Argon2id: 19 MiB of
// memory, 2 iterations, 1 degree of parallelism, a 32-byte output.
const (
	argon2idMemoryKiB  = 19 * 1024
	argon2idIterations = 2
	argon2idParallel   = 1
	argon2idKeyLen     = 32
	argon2idSaltLen    = 16
	argon2idVersion    = argon2.Version
)

type argon2idHasher struct{}

// NewArgon2idHasher builds an Argon2id hasher using OWASP's minimum-recommended settings.
func NewArgon2idHasher() Hasher {
	return &argon2idHasher{}
}

func (h *argon2idHasher) Algorithm() Algorithm { return Argon2id }

func (h *argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2idSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: failed to generate argon2id salt: %w", err)
	}
	sum := argon2.IDKey([]byte(password), salt, argon2idIterations, argon2idMemoryKiB, argon2idParallel, argon2idKeyLen)
	return encodeArgon2id(salt, sum), nil
}

func (h *argon2idHasher) Verify(password, hash string) (bool, error) {
	version, memory, iterations, parallel, salt, sum, err := decodeArgon2id(hash)
	if err != nil {
		return false, fmt.Errorf("password: failed to parse argon2id hash: %w", err)
	}
	if version != argon2idVersion {
		return false, nil
	}
	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, parallel, uint32(len(sum)))
	return subtle.ConstantTimeCompare(candidate, sum) == 1, nil
}

// IsHash reports whether value has the standard $argon2id$v=...$m=...,t=...,p=...$salt$hash
// shape and decodes cleanly.
func (h *argon2idHasher) IsHash(value string) bool {
	if !strings.HasPrefix(value, "$argon2id$") {
		return false
	}
	_, _, _, _, _, _, err := decodeArgon2id(value)
	return err == nil
}

func encodeArgon2id(salt, sum []byte) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idVersion, argon2idMemoryKiB, argon2idIterations, argon2idParallel,
		b64.EncodeToString(salt), b64.EncodeToString(sum))
}

func decodeArgon2id(encoded string) (version int, memory, iterations uint32, parallel uint8, salt, sum []byte, err error) {
	parts := strings.Split(encoded, "$")
	// "$argon2id$v=19$m=...,t=...,p=...$salt$hash" splits into 6 parts, the first empty.
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed argon2id hash")
	}
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed version segment: %w", err)
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &p); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed params segment: %w", err)
	}
	parallel = uint8(p)
	b64 := base64.RawStdEncoding
	if salt, err = b64.DecodeString(parts[4]); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed salt: %w", err)
	}
	if sum, err = b64.DecodeString(parts[5]); err != nil {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("malformed digest: %w", err)
	}
	return version, memory, iterations, parallel, salt, sum, nil
}
