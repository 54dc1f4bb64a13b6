package password

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerHashUsesPreferredAlgorithm(t *testing.T) {
	m := NewManager()
	hash, err := m.Hash("CorrectHorse123!")
	require.NoError(t, err)
	detected, err := m.DetectAlgorithm(hash)
	require.NoError(t, err)
	assert.Equal(t, Argon2id, detected.Algorithm())
}

func TestManagerVerifyRoundTripsEachAlgorithm(t *testing.T) {
	m := NewManager()
	password := "CorrectHorse123!"
	for _, h := range m.hashers {
		hash, err := h.Hash(password)
		require.NoError(t, err, h.Algorithm())

		ok, err := m.Verify(password, hash)
		require.NoError(t, err, h.Algorithm())
		assert.True(t, ok, "%s: expected correct password to verify", h.Algorithm())

		ok, err = m.Verify("WrongPassword123!", hash)
		require.NoError(t, err, h.Algorithm())
		assert.False(t, ok, "%s: expected wrong password to fail verification", h.Algorithm())
	}
}

func TestManagerDetectAlgorithmRejectsUnknownFormat(t *testing.T) {
	m := NewManager()
	_, err := m.DetectAlgorithm("not-a-hash")
	assert.Error(t, err)
}

func TestManagerIsHashed(t *testing.T) {
	m := NewManager()
	hash, _ := NewBcryptHasher().Hash("CorrectHorse123!")
	assert.True(t, m.IsHashed(hash), "expected a bcrypt hash to be recognized")
	assert.False(t, m.IsHashed("plaintext-password"), "expected plaintext to not be recognized as a hash")
}

func TestBcryptIsHashRequiresExactShape(t *testing.T) {
	h := NewBcryptHasher()
	hash, _ := h.Hash("test")
	assert.True(t, h.IsHash(hash), "expected a freshly generated hash to be recognized")
	assert.False(t, h.IsHash("$2b$12$tooshort"), "expected a too-short value to be rejected")
	assert.False(t, h.IsHash("{SSHA}example"), "expected an SSHA value to be rejected")
}

func TestBcryptCustomCostValidatesRange(t *testing.T) {
	_, err := NewBcryptHasherWithCost(3)
	assert.Error(t, err, "expected cost below minimum to be rejected")

	_, err = NewBcryptHasherWithCost(32)
	assert.Error(t, err, "expected cost above maximum to be rejected")

	_, err = NewBcryptHasherWithCost(10)
	assert.NoError(t, err, "expected a valid cost to be accepted")
}

func TestArgon2idIsHashRejectsOtherAlgorithms(t *testing.T) {
	h := NewArgon2idHasher()
	assert.False(t, h.IsHash("$2b$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"), "expected a bcrypt hash to be rejected")
	assert.False(t, h.IsHash("{SSHA}example"), "expected an SSHA value to be rejected")
}

func TestArgon2idDifferentSaltsProduceDifferentHashes(t *testing.T) {
	h := NewArgon2idHasher()
	password := "SamePassword123!"
	hash1, err := h.Hash(password)
	require.NoError(t, err)
	hash2, err := h.Hash(password)
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2, "expected independently generated hashes to use different salts")

	for _, hash := range []string{hash1, hash2} {
		ok, err := h.Verify(password, hash)
		require.NoError(t, err)
		assert.True(t, ok, "expected %q to verify", hash)
	}
}

func TestSSHAKnownVector(t *testing.T) {
	h := &sshaHasher{saltLen: sshaSaltLen}
	salt := []byte("testsalt")
	sum := sshaDigest("password", salt)
	payload := append(append([]byte{}, sum...), salt...)
	hash := sshaPrefix + base64.StdEncoding.EncodeToString(payload)

	ok, err := h.Verify("password", hash)
	require.NoError(t, err)
	assert.True(t, ok, "expected the hand-constructed SSHA vector to verify")
}

func TestSSHAIsHashRejectsShortPayload(t *testing.T) {
	h := NewSSHAHasher()
	assert.False(t, h.IsHash(sshaPrefix+"dG9vc2hvcnQ="), "expected a too-short decoded payload to be rejected")
	assert.False(t, h.IsHash("not-a-hash"), "expected a value without the {SSHA} prefix to be rejected")
}

func TestSSHARoundTripRejectsWrongPassword(t *testing.T) {
	h := NewSSHAHasher()
	hash, err := h.Hash("CorrectHorse123!")
	require.NoError(t, err)
	ok, err := h.Verify("WrongPassword", hash)
	require.NoError(t, err)
	assert.False(t, ok, "expected a wrong password to fail verification")
}

func TestValidateStrengthEnforcesComposition(t *testing.T) {
	cases := map[string]bool{
		"Short1!":          false, // too short
		"alllowercase123!": false, // no uppercase
		"ALLUPPERCASE123!": false, // no lowercase
		"NoDigitsHere!!":   false, // no digit
		"NoSymbolsHere123": false, // no symbol
		"ValidPass123!":    true,
	}
	for pw, wantOK := range cases {
		err := ValidateStrength(pw)
		if wantOK {
			assert.NoError(t, err, pw)
		} else {
			assert.Error(t, err, pw)
		}
	}
}
