package remote

import (
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned by Create when the document id is taken.
var ErrAlreadyExists = errors.New("remote: document already exists")

// ErrNotSignedIn is returned by operations that need a signed-in account.
var ErrNotSignedIn = errors.New("remote: not signed in")

// Provider error codes.
const (
	CodeEmailInUse        = "email-already-in-use"
	CodeWeakPassword      = "weak-password"
	CodeInvalidEmail      = "invalid-email"
	CodeUserNotFound      = "user-not-found"
	CodeWrongPassword     = "wrong-password"
	CodeInvalidCredential = "invalid-credential"
	CodeUnavailable       = "unavailable"
)

// ProviderError is an authentication failure reported by the provider.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth provider: %s: %v", e.Code, e.Err)
	}
	return "auth provider: " + e.Code
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderCode returns the provider error code carried by err, if any.
func ProviderCode(err error) (string, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}
