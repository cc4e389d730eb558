// Package password holds the credential primitives: bcrypt hashing, strength
// rules and email normalization.
package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const Cost = bcrypt.DefaultCost

// bcrypt only reads the first 72 bytes of its input.
const bcryptMaxInput = 72

var ErrEmptyPassword = errors.New("password is empty")

// Hash returns a salted bcrypt hash of plaintext.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check reports whether plaintext matches hash. A malformed hash is a mismatch.
func Check(hash, plaintext string) bool {
	if hash == "" || plaintext == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plaintext)) == nil
}

// DummyHash is compared against when the account does not exist so that an
// unknown email costs the same as a wrong password.
var DummyHash = func() string {
	b, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), Cost)
	if err != nil {
		panic(err)
	}
	return string(b)
}()

// Inputs longer than bcrypt accepts are pre-hashed so that the full
// password stays significant.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
