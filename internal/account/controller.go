// Package account drives registration, login, auto-login and logout. It is
// the only writer of the credential vault.
package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/directory"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

// Directory resolves usernames and stores profiles.
type Directory interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	ResolveUsername(ctx context.Context, username string) (string, bool, error)
	ClaimUsername(ctx context.Context, username, uid, email string) error
	ReleaseUsername(ctx context.Context, username, uid string) error
	PutProfile(ctx context.Context, id model.Identity) error
	Profile(ctx context.Context, uid string) (*model.Identity, error)
}

// Vault persists credentials and identity.
type Vault interface {
	SaveCredentials(ctx context.Context, c model.Credentials) error
	GetCredentials(ctx context.Context) (*model.Credentials, error)
	SaveIdentity(ctx context.Context, id model.Identity) error
	Clear(ctx context.Context) error
}

// Cache is the part of the message cache the controller clears.
type Cache interface {
	Clear(ctx context.Context)
}

// Controller owns the signed-in identity.
type Controller struct {
	auth   remote.AuthProvider
	dir    Directory
	vault  Vault
	cache  Cache
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.RWMutex
	current *model.Identity
}

func NewController(auth remote.AuthProvider, dir Directory, vault Vault, cache Cache, b *bus.Bus, logger *zap.Logger) *Controller {
	return &Controller{
		auth:   auth,
		dir:    dir,
		vault:  vault,
		cache:  cache,
		bus:    b,
		logger: logging.OrNop(logger).Named("account"),
	}
}

// Current returns the signed-in identity, or nil.
func (c *Controller) Current() *model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	id := *c.current
	return &id
}

// Register creates an account and signs it in. Usernames are stored
// lower-cased.
func (c *Controller) Register(ctx context.Context, username, email, password string) (*model.Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}
	username = directory.NormalizeUsername(username)

	taken, err := c.dir.UsernameTaken(ctx, username)
	if err != nil {
		return nil, &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	if taken {
		return nil, &UsernameTakenError{Username: username}
	}

	acc, err := c.auth.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, translateCreate(err)
	}

	if err := c.dir.ClaimUsername(ctx, username, acc.UID, acc.Email); err != nil {
		c.abandon(ctx, acc, "")
		if errors.Is(err, directory.ErrUsernameTaken) {
			return nil, &UsernameTakenError{Username: username}
		}
		return nil, &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	draft := model.Identity{ID: acc.UID, Email: acc.Email, Username: username}
	if err := c.dir.PutProfile(ctx, draft); err != nil {
		c.abandon(ctx, acc, username)
		return nil, &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
	}

	id, err := c.dir.Profile(ctx, acc.UID)
	if err != nil || id == nil {
		c.logger.Warn("profile read-back failed, using local copy", zap.String("uid", acc.UID), zap.Error(err))
		draft.CreatedAt = time.Now().UTC()
		id = &draft
	}

	c.establish(ctx, model.Credentials{Identifier: acc.Email, Secret: password}, id)
	c.logger.Info("account registered", zap.String("uid", id.ID), zap.String("username", id.Username))
	return c.Current(), nil
}

// Login authenticates with a username or email. Identifiers without '@' are
// resolved through the directory first.
func (c *Controller) Login(ctx context.Context, identifier, password string) (*model.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if err := validateLogin(identifier, password); err != nil {
		return nil, err
	}

	email := identifier
	if !isEmail(identifier) {
		resolved, ok, err := c.dir.ResolveUsername(ctx, identifier)
		if err != nil {
			return nil, &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
		}
		if !ok {
			return nil, &UserNotFoundError{Username: directory.NormalizeUsername(identifier)}
		}
		email = resolved
	}

	acc, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, translateSignIn(err)
	}

	id, err := c.dir.Profile(ctx, acc.UID)
	if err != nil {
		return nil, &AuthProviderError{Code: remote.CodeUnavailable, Err: err}
	}
	if id == nil {
		if err := c.auth.SignOut(ctx); err != nil {
			c.logger.Warn("sign-out after missing profile failed", zap.Error(err))
		}
		return nil, &ProfileMissingError{UID: acc.UID}
	}

	c.establish(ctx, model.Credentials{Identifier: acc.Email, Secret: password}, id)
	c.logger.Info("signed in", zap.String("uid", id.ID))
	return c.Current(), nil
}

// AutoLogin replays stored credentials. It returns nil when nothing is stored
// or the stored credentials no longer work; in the latter case the vault and
// the message cache are cleared. Only context cancellation is reported as an
// error.
func (c *Controller) AutoLogin(ctx context.Context) (*model.Identity, error) {
	creds, err := c.vault.GetCredentials(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("stored credentials unreadable, clearing", zap.Error(err))
		c.clearLocal(ctx)
		return nil, nil
	}
	if creds == nil {
		return nil, nil
	}

	id, err := c.Login(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Info("auto-login failed, clearing stored session", zap.Error(err))
		c.clearLocal(ctx)
		return nil, nil
	}
	return id, nil
}

// Logout signs out remotely and clears local state. Local state is cleared
// even when the remote sign-out fails.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.auth.SignOut(ctx); err != nil {
		c.logger.Warn("remote sign-out failed", zap.Error(err))
	}
	c.clearLocal(ctx)

	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev != nil {
		c.bus.Emit(bus.KindSignedOut, *prev)
		c.logger.Info("signed out", zap.String("uid", prev.ID))
	}
}

// abandon undoes a half-finished registration: it releases the username
// claim, when one was made, and deletes the new account. If the account
// cannot be deleted it is at least signed out.
func (c *Controller) abandon(ctx context.Context, acc *remote.Account, claimed string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	log := c.logger.With(zap.String("uid", acc.UID))
	if claimed != "" {
		if err := c.dir.ReleaseUsername(ctx, claimed, acc.UID); err != nil {
			log.Warn("failed to release username", zap.String("username", claimed), zap.Error(err))
		}
	}
	if err := c.auth.DeleteAccount(ctx); err != nil {
		log.Warn("failed to delete abandoned account", zap.Error(err))
		if err := c.auth.SignOut(ctx); err != nil {
			log.Warn("sign-out after failed registration failed", zap.Error(err))
		}
		return
	}
	log.Info("registration rolled back")
}

func (c *Controller) establish(ctx context.Context, creds model.Credentials, id *model.Identity) {
	if err := c.vault.SaveCredentials(ctx, creds); err != nil {
		c.logger.Error("failed to persist credentials", zap.Error(err))
	}
	if err := c.vault.SaveIdentity(ctx, *id); err != nil {
		c.logger.Error("failed to persist identity", zap.Error(err))
	}

	c.mu.Lock()
	cur := *id
	c.current = &cur
	c.mu.Unlock()

	c.bus.Emit(bus.KindSignedIn, *id)
}

func (c *Controller) clearLocal(ctx context.Context) {
	if err := c.vault.Clear(ctx); err != nil {
		c.logger.Error("failed to clear vault", zap.Error(err))
	}
	c.cache.Clear(ctx)
}
