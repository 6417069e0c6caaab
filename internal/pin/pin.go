// Package pin hashes and verifies the numeric PINs mobile employees log in
// with.
package pin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 100000
	keyLen     = sha256.Size
	saltBytes  = 8
)

var (
	// ErrInvalidFormat is returned for PINs that are not 4 to 6 digits.
	ErrInvalidFormat = errors.New("pin must be 4-6 digits only")

	pinPattern = regexp.MustCompile(`^\d{4,6}$`)
)

// Validate checks the PIN format.
func Validate(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidFormat
	}
	return nil
}

// NewSalt returns a random hex salt.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash derives the stored form of a PIN: base64(PBKDF2-HMAC-SHA256).
func Hash(pin, salt string) string {
	dk := pbkdf2.Key([]byte(pin), []byte(salt), Iterations, keyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(dk)
}

// Generate validates a PIN and returns its hash with a fresh salt.
func Generate(pin string) (hash, salt string, err error) {
	if err := Validate(pin); err != nil {
		return "", "", err
	}
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return Hash(pin, salt), salt, nil
}

// Verify compares a PIN against a stored hash in constant time. A missing
// hash or salt never verifies.
func Verify(pin, hash, salt string) bool {
	if hash == "" || salt == "" {
		return false
	}
	computed := Hash(pin, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
