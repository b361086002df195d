package account

import (
	"strings"
	"unicode"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

func validateRegistration(username, email, password string) error {
	if len([]rune(username)) < MinUsernameLength {
		return &ValidationError{Field: "username", Reason: "must be at least 3 characters"}
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "username", Reason: "must not contain whitespace"}
	}
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return nil
}

func validateLogin(identifier, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return &ValidationError{Field: "identifier", Reason: "is required"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	return nil
}

// isEmail reports whether identifier should be used as an email directly.
func isEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
