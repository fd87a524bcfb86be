package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltBytes        = 16
	PBKDF2Iterations = 100000
	hashKeyLen       = sha256.Size
)

// ErrMalformedHash is returned when a stored password is not of the form salt:hash.
var ErrMalformedHash = errors.New("stored password is not in salt:hash form")

// HashPassword hashes password with a fresh random salt and returns "salt:hashHex".
func HashPassword(password string) (string, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return HashPasswordWithSalt(password, hex.EncodeToString(salt)), nil
}

// HashPasswordWithSalt derives the PBKDF2-HMAC-SHA256 key over the password
// using the hex salt text itself as the salt bytes, so hashes stay
// interchangeable with user files written by earlier versions of the app.
func HashPasswordWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), PBKDF2Iterations, hashKeyLen, sha256.New)
	return salt + ":" + hex.EncodeToString(key)
}

// VerifyPassword recomputes the hash of candidate with the stored salt.
func VerifyPassword(stored, candidate string) (bool, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false, ErrMalformedHash
	}
	salt, expected := parts[0], parts[1]

	computed := HashPasswordWithSalt(candidate, salt)
	_, actual, _ := strings.Cut(computed, ":")

	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1, nil
}
