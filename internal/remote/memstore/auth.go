package memstore

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatroom/internal/remote"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

type account struct {
	uid  string
	hash []byte
}

// CreateAccount registers email and signs it in.
func (s *Store) CreateAccount(ctx context.Context, email, password string) (*remote.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, &remote.ProviderError{Code: remote.CodeWeakPassword}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeWeakPassword, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	if _, ok := s.accounts[email]; ok {
		return nil, &remote.ProviderError{Code: remote.CodeEmailInUse}
	}
	acc := &account{uid: uuid.NewString(), hash: hash}
	s.accounts[email] = acc
	s.current = &remote.Account{UID: acc.uid, Email: email, Token: uuid.NewString()}
	out := *s.current
	return &out, nil
}

// SignIn authenticates email with password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*remote.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.requestErr != nil {
		err := s.requestErr
		s.mu.Unlock()
		return nil, err
	}
	acc, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		return nil, &remote.ProviderError{Code: remote.CodeUserNotFound}
	}

	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, &remote.ProviderError{Code: remote.CodeWrongPassword}
		}
		return nil, &remote.ProviderError{Code: remote.CodeInvalidCredential, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &remote.Account{UID: acc.uid, Email: email, Token: uuid.NewString()}
	out := *s.current
	return &out, nil
}

// SignOut ends the current session. Signing out twice is not an error.
func (s *Store) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return s.requestErr
	}
	s.current = nil
	return nil
}

// DeleteAccount removes the signed-in account.
func (s *Store) DeleteAccount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return s.requestErr
	}
	if s.current == nil {
		return &remote.ProviderError{Code: remote.CodeUserNotFound}
	}
	delete(s.accounts, s.current.Email)
	s.current = nil
	return nil
}

// CurrentAccount returns the signed-in account, or nil.
func (s *Store) CurrentAccount() *remote.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &remote.ProviderError{Code: remote.CodeInvalidEmail}
	}
	return email, nil
}
