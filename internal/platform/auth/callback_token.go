package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashCallbackToken produces the value stored in carrier.callback_token_hash.
func HashCallbackToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCallbackToken compares a presented token with its bcrypt hash. An empty hash disables the check.
func VerifyCallbackToken(hash, token string) bool {
	if hash == "" {
		return true
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
