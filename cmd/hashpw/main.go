// hashpw pre-hashes an operator-supplied password using this module's password subsystem,
// so a tenant config author can paste a hash into seed data or a Basic auth config without
// a live server ever seeing the plaintext.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/scimbridge/tenant-scim/internal/password"
)

func main() {
	algo := flag.String("algo", "argon2id", "hashing algorithm: argon2id, bcrypt, or ssha")
	pw := flag.String("password", "", "password to hash (prompted-once alternative: pass via this flag)")
	flag.Parse()

	if *pw == "" {
		log.Fatal("-password is required")
	}

	hasher, err := hasherFor(*algo)
	if err != nil {
		log.Fatal(err)
	}

	if err := password.ValidateStrength(*pw); err != nil {
		log.Fatalf("password does not meet strength requirements: %v", err)
	}

	hash, err := hasher.Hash(*pw)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	fmt.Println(hash)
}

func hasherFor(algo string) (password.Hasher, error) {
	switch strings.ToLower(algo) {
	case "argon2id":
		return password.NewArgon2idHasher(), nil
	case "bcrypt":
		return password.NewBcryptHasher(), nil
	case "ssha":
		return password.NewSSHAHasher(), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algo)
	}
}
