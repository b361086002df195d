package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

var (
	ErrInvalidToken = errors.New("redisstore: invalid token")
	ErrRevokedToken = errors.New("redisstore: token revoked")
)

// createAccountScript writes uid and hash together, only if the email is free.
var createAccountScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "uid", ARGV[1], "hash", ARGV[2])
return 1
`)

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func (ti *tokenIssuer) issue(uid string, now time.Time) (string, *jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    ti.issuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func (ti *tokenIssuer) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	}, jwt.WithIssuer(ti.issuer))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Store) accountKey(email string) string {
	return s.prefix + ":auth:email:" + email
}

func (s *Store) sessionKey(jti string) string {
	return s.prefix + ":auth:session:" + jti
}

// CreateAccount registers email and signs it in.
func (s *Store) CreateAccount(ctx context.Context, email, password string) (*remote.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, &remote.ProviderError{Code: remote.CodeWeakPassword}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeWeakPassword, Err: err}
	}

	uid := uuid.NewString()
	claimed, err := createAccountScript.Run(ctx, s.client, []string{s.accountKey(email)}, uid, hash).Int()
	if err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	if claimed == 0 {
		return nil, &remote.ProviderError{Code: remote.CodeEmailInUse}
	}
	s.logger.Info("account created", zap.String("uid", uid))
	return s.startSession(ctx, uid, email)
}

// SignIn authenticates email with password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*remote.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.accountKey(email)).Result()
	if err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	uid, hash := fields["uid"], fields["hash"]
	if uid == "" || hash == "" {
		return nil, &remote.ProviderError{Code: remote.CodeUserNotFound}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, &remote.ProviderError{Code: remote.CodeWrongPassword}
		}
		return nil, &remote.ProviderError{Code: remote.CodeInvalidCredential, Err: err}
	}
	return s.startSession(ctx, uid, email)
}

func (s *Store) startSession(ctx context.Context, uid, email string) (*remote.Account, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	token, claims, err := s.tokens.issue(uid, now)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, s.sessionKey(claims.ID), uid, s.tokens.ttl).Err(); err != nil {
		return nil, &remote.ProviderError{Code: remote.CodeUnavailable, Err: err}
	}

	acc := &remote.Account{UID: uid, Email: email, Token: token}
	s.mu.Lock()
	s.current = acc
	s.mu.Unlock()
	out := *acc
	return &out, nil
}

// SignOut revokes the current session token.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	acc := s.current
	s.current = nil
	s.mu.Unlock()
	if acc == nil {
		return nil
	}

	claims, err := s.tokens.parse(acc.Token)
	if err != nil {
		return nil
	}
	if err := s.client.Del(ctx, s.sessionKey(claims.ID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteAccount removes the signed-in account and revokes its session.
func (s *Store) DeleteAccount(ctx context.Context) error {
	s.mu.Lock()
	acc := s.current
	s.mu.Unlock()
	if acc == nil {
		return &remote.ProviderError{Code: remote.CodeUserNotFound}
	}

	keys := []string{s.accountKey(acc.Email)}
	if claims, err := s.tokens.parse(acc.Token); err == nil {
		keys = append(keys, s.sessionKey(claims.ID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return &remote.ProviderError{Code: remote.CodeUnavailable, Err: err}
	}

	s.mu.Lock()
	if s.current == acc {
		s.current = nil
	}
	s.mu.Unlock()
	s.logger.Info("account deleted", zap.String("uid", acc.UID))
	return nil
}

// Verify returns the uid a token was issued to, if it is still live.
func (s *Store) Verify(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.parse(token)
	if err != nil {
		return "", err
	}
	uid, err := s.client.Get(ctx, s.sessionKey(claims.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRevokedToken
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if uid != claims.Subject {
		return "", ErrInvalidToken
	}
	return uid, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &remote.ProviderError{Code: remote.CodeInvalidEmail}
	}
	return email, nil
}
