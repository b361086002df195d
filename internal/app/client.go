package app

import (
	"context"

	"github.com/matheus3301/chatroom/internal/account"
	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/cache"
	"github.com/matheus3301/chatroom/internal/config"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/sync"
	"go.uber.org/zap"
)

// Client is the surface the binaries drive.
type Client struct {
	Profile  string
	Config   *config.Config
	Logger   *zap.Logger
	Bus      *bus.Bus
	Cache    *cache.Store
	Accounts *account.Controller
	Sessions *Sessions
	Gate     *media.Gate
}

func NewClient(p Params, logger *zap.Logger, b *bus.Bus, c *cache.Store, accounts *account.Controller, sessions *Sessions, gate *media.Gate) *Client {
	return &Client{
		Profile:  p.Profile,
		Config:   p.Config,
		Logger:   logger,
		Bus:      b,
		Cache:    c,
		Accounts: accounts,
		Sessions: sessions,
		Gate:     gate,
	}
}

// Resume replays stored credentials and opens the room for the restored
// identity. It returns a nil session when no one is signed in.
func (c *Client) Resume(ctx context.Context) (*sync.Session, error) {
	id, err := c.Accounts.AutoLogin(ctx)
	if err != nil || id == nil {
		return nil, err
	}
	return c.Sessions.Open(ctx, *id)
}

// Enter opens the room for a freshly signed-in identity.
func (c *Client) Enter(ctx context.Context, id *model.Identity) (*sync.Session, error) {
	return c.Sessions.Open(ctx, *id)
}

// Logout tears down the open session before clearing local state, so no
// late snapshot repopulates the cache.
func (c *Client) Logout(ctx context.Context) {
	c.Sessions.CloseAll()
	c.Accounts.Logout(ctx)
}
