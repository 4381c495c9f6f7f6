package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 32
	keyLength  = 64
	iterations = 10000
)

// HashPassword derives a PBKDF2-SHA512 hash from password using a fresh random salt.
// Both values are hex encoded, matching the stored account documents.
func HashPassword(password string) (salt string, hash string, err error) {
	saltBytes := make([]byte, saltLength)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", err
	}
	salt = hex.EncodeToString(saltBytes)
	return salt, DeriveHash(password, salt), nil
}

// DeriveHash is deterministic for a given (password, salt) pair.
func DeriveHash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha512.New)
	return hex.EncodeToString(key)
}

// VerifyPassword recomputes the hash for password and compares it in constant time.
func VerifyPassword(password, hash, salt string) bool {
	if hash == "" || salt == "" {
		return false
	}
	computed := DeriveHash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
