// Package directory maps usernames to accounts and stores user profiles in
// the remote document store.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote"
	"go.uber.org/zap"
)

const (
	UsersCollection     = "users"
	UsernamesCollection = "usernames"
)

// ErrUsernameTaken is returned when a username claim loses to an existing one.
var ErrUsernameTaken = errors.New("directory: username taken")

type profileDoc struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type claimDoc struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Directory reads and writes identity records.
type Directory struct {
	store  remote.DocumentStore
	logger *zap.Logger
}

func New(store remote.DocumentStore, logger *zap.Logger) *Directory {
	return &Directory{store: store, logger: logging.OrNop(logger)}
}

// NormalizeUsername returns the canonical form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// UsernameTaken reports whether username is already claimed.
func (d *Directory) UsernameTaken(ctx context.Context, username string) (bool, error) {
	doc, err := d.store.Get(ctx, UsernamesCollection, NormalizeUsername(username))
	if err != nil {
		return false, fmt.Errorf("lookup username: %w", err)
	}
	return doc != nil, nil
}

// ResolveUsername returns the email registered for username.
func (d *Directory) ResolveUsername(ctx context.Context, username string) (string, bool, error) {
	doc, err := d.store.Get(ctx, UsernamesCollection, NormalizeUsername(username))
	if err != nil {
		return "", false, fmt.Errorf("lookup username: %w", err)
	}
	if doc == nil {
		return "", false, nil
	}
	var claim claimDoc
	if err := doc.Decode(&claim); err != nil {
		return "", false, fmt.Errorf("decode username %q: %w", username, err)
	}
	return claim.Email, true, nil
}

// ClaimUsername reserves username for uid.
func (d *Directory) ClaimUsername(ctx context.Context, username, uid, email string) error {
	err := d.store.Create(ctx, UsernamesCollection, NormalizeUsername(username), claimDoc{UID: uid, Email: email})
	if errors.Is(err, remote.ErrAlreadyExists) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("claim username: %w", err)
	}
	return nil
}

// ReleaseUsername drops the claim on username if uid holds it.
func (d *Directory) ReleaseUsername(ctx context.Context, username, uid string) error {
	key := NormalizeUsername(username)
	doc, err := d.store.Get(ctx, UsernamesCollection, key)
	if err != nil {
		return fmt.Errorf("lookup username: %w", err)
	}
	if doc == nil {
		return nil
	}
	var claim claimDoc
	if err := doc.Decode(&claim); err != nil {
		return fmt.Errorf("decode username %q: %w", username, err)
	}
	if claim.UID != uid {
		return nil
	}
	if err := d.store.Delete(ctx, UsernamesCollection, key); err != nil {
		return fmt.Errorf("release username: %w", err)
	}
	d.logger.Debug("username released", zap.String("username", key))
	return nil
}

// PutProfile stores the profile of id.
func (d *Directory) PutProfile(ctx context.Context, id model.Identity) error {
	doc := profileDoc{UID: id.ID, Email: id.Email, Username: NormalizeUsername(id.Username)}
	if err := d.store.Set(ctx, UsersCollection, id.ID, doc); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	d.logger.Debug("profile stored", zap.String("uid", id.ID))
	return nil
}

// Profile returns the profile of uid, or nil when none exists.
func (d *Directory) Profile(ctx context.Context, uid string) (*model.Identity, error) {
	doc, err := d.store.Get(ctx, UsersCollection, uid)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	var p profileDoc
	if err := doc.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", uid, err)
	}
	id := &model.Identity{ID: uid, Email: p.Email, Username: p.Username}
	if doc.CreatedAt != nil {
		id.CreatedAt = *doc.CreatedAt
	}
	return id, nil
}
