package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns n random bytes encoded as URL-safe base64, suitable for cookies.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
