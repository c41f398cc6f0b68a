package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"rentdesk/internal/domain"
)

const MinPasswordLen = 8

// HashPassword returns a bcrypt hash. Short passwords are a validation error.
func HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLen {
		return "", &domain.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &domain.ValidationError{Field: "password", Message: "must be at most 72 bytes"}
		}
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
