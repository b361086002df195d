// Package app composes the client: per-profile persistence, the remote
// backend, the account controller and the sync session factory.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatroom/internal/account"
	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/cache"
	"github.com/matheus3301/chatroom/internal/config"
	"github.com/matheus3301/chatroom/internal/directory"
	"github.com/matheus3301/chatroom/internal/lock"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/profile"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/matheus3301/chatroom/internal/remote/memstore"
	"github.com/matheus3301/chatroom/internal/remote/redisstore"
	"github.com/matheus3301/chatroom/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dialTimeout = 3 * time.Second

// Params holds the resolved profile and configuration passed to the module.
type Params struct {
	Profile string
	Config  *config.Config
	Console bool           // also log warnings to stderr
	Backend remote.Backend // optional override; nil selects from Config
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("chatroom",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideCache,
			provideVault,
			provideBackend,
			provideDocumentStore,
			provideAuthProvider,
			provideDirectory,
			provideGate,
			provideController,
			NewSessions,
			NewClient,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Config.Log.Level, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// The lock parameter orders store opening after lock acquisition.
func provideCache(p Params, _ *lock.Lock, logger *zap.Logger) (*cache.Store, error) {
	return cache.Open(profile.CacheDBPath(p.Profile), logger)
}

func provideVault(p Params, _ *lock.Lock, logger *zap.Logger) (*vault.Vault, error) {
	v, err := vault.Open(profile.VaultDBPath(p.Profile), profile.VaultKeyPath(p.Profile), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("vault opened", zap.String("path", profile.VaultDBPath(p.Profile)))
	return v, nil
}

func provideBackend(p Params, logger *zap.Logger) (remote.Backend, error) {
	if p.Backend != nil {
		return p.Backend, nil
	}
	rc := p.Config.Remote
	switch rc.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory backend; messages are not shared")
		return memstore.New(), nil
	case config.BackendRedis, "":
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:        rc.Addr,
			Password:    rc.Password,
			DB:          rc.DB,
			Prefix:      rc.Prefix,
			TokenSecret: rc.TokenSecret,
			TokenTTL:    rc.TokenTTL.Duration,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("remote backend configured", zap.String("addr", rc.Addr))
		return s, nil
	}
	return nil, fmt.Errorf("unknown remote backend %q", rc.Backend)
}

func provideDocumentStore(b remote.Backend) remote.DocumentStore {
	return b
}

func provideAuthProvider(b remote.Backend) remote.AuthProvider {
	return b
}

func provideDirectory(store remote.DocumentStore, logger *zap.Logger) *directory.Directory {
	return directory.New(store, logger)
}

func provideGate(p Params, logger *zap.Logger) *media.Gate {
	return media.NewGate(media.Options{
		MaxDimension: p.Config.Media.MaxDimension,
		JPEGQuality:  p.Config.Media.JPEGQuality,
	}, logger)
}

func provideController(auth remote.AuthProvider, dir *directory.Directory, v *vault.Vault, c *cache.Store, b *bus.Bus, logger *zap.Logger) *account.Controller {
	return account.NewController(auth, dir, v, c, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, c *cache.Store, v *vault.Vault, backend remote.Backend, sessions *Sessions, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			st := c.Stats(context.Background())
			logger.Info("client started",
				zap.Int("cached_messages", st.MessageCount),
				zap.Time("last_sync", st.LastSync))
			return nil
		},
		OnStop: func(_ context.Context) error {
			sessions.CloseAll()
			if err := backend.Close(); err != nil {
				logger.Warn("error closing remote backend", zap.Error(err))
			}
			if err := v.Close(); err != nil {
				logger.Warn("error closing vault", zap.Error(err))
			}
			if err := c.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			if dropped := b.Dropped(); dropped > 0 {
				logger.Warn("bus events dropped", zap.Uint64("count", dropped))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
