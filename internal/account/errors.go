package account

import (
	"errors"
	"fmt"

	"github.com/matheus3301/chatroom/internal/remote"
)

// ValidationError is a local input rule violation. It is returned before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UsernameTakenError is returned by Register when the username is claimed.
type UsernameTakenError struct {
	Username string
}

func (e *UsernameTakenError) Error() string {
	return fmt.Sprintf("username %q is already taken", e.Username)
}

// UserNotFoundError is returned by Login when a username does not resolve.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Username)
}

// InvalidCredentialsError is returned when the provider rejects a sign-in.
type InvalidCredentialsError struct {
	Err error
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid credentials"
}

func (e *InvalidCredentialsError) Unwrap() error {
	return e.Err
}

// ProfileMissingError is returned when sign-in succeeds but the account has
// no profile document.
type ProfileMissingError struct {
	UID string
}

func (e *ProfileMissingError) Error() string {
	return fmt.Sprintf("profile missing for account %s", e.UID)
}

// AuthProviderError is any other provider failure.
type AuthProviderError struct {
	Code string
	Err  error
}

func (e *AuthProviderError) Error() string {
	switch e.Code {
	case remote.CodeEmailInUse:
		return "email is already registered"
	case remote.CodeWeakPassword:
		return "password is too weak"
	case remote.CodeInvalidEmail:
		return "email address is invalid"
	}
	if e.Err != nil {
		return fmt.Sprintf("auth provider: %v", e.Err)
	}
	return "auth provider: " + e.Code
}

func (e *AuthProviderError) Unwrap() error {
	return e.Err
}

// translateSignIn maps a provider failure from sign-in to the error taxonomy.
func translateSignIn(err error) error {
	code, ok := remote.ProviderCode(err)
	if !ok {
		return &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	switch code {
	case remote.CodeUserNotFound, remote.CodeWrongPassword, remote.CodeInvalidCredential, remote.CodeInvalidEmail:
		return &InvalidCredentialsError{Err: err}
	}
	return &AuthProviderError{Code: code, Err: err}
}

func translateCreate(err error) error {
	code, ok := remote.ProviderCode(err)
	if !ok {
		code = remote.CodeUnavailable
	}
	return &AuthProviderError{Code: code, Err: err}
}

// IsUserFacing reports whether err belongs to the account error taxonomy.
func IsUserFacing(err error) bool {
	var (
		ve  *ValidationError
		ut  *UsernameTakenError
		unf *UserNotFoundError
		ic  *InvalidCredentialsError
		pm  *ProfileMissingError
		ap  *AuthProviderError
	)
	return errors.As(err, &ve) || errors.As(err, &ut) || errors.As(err, &unf) ||
		errors.As(err, &ic) || errors.As(err, &pm) || errors.As(err, &ap)
}
