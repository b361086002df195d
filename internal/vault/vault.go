package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/store"
	"github.com/matheus3301/chatroom/internal/vault/migrations"
	"go.uber.org/zap"
)

// Vault persists the login credentials and resolved identity of one profile.
// It lives in its own database so clearing the message cache never touches
// credentials and vice versa.
type Vault struct {
	db     *store.DB
	key    *[keySize]byte
	logger *zap.Logger
	now    func() time.Time
}

// Open opens the vault database at dbPath, sealing secrets with the key
// stored at keyPath.
func Open(dbPath, keyPath string, logger *zap.Logger) (*Vault, error) {
	key, err := LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	db, _, err := store.OpenMigrated(dbPath, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return New(db, key, logger), nil
}

// New wraps an already migrated database.
func New(db *store.DB, key *[keySize]byte, logger *zap.Logger) *Vault {
	return &Vault{
		db:     db,
		key:    key,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// Close closes the underlying database.
func (v *Vault) Close() error {
	return v.db.Close()
}

// SaveCredentials replaces the stored credentials.
func (v *Vault) SaveCredentials(ctx context.Context, c model.Credentials) error {
	sealed, err := seal(v.key, []byte(c.Secret))
	if err != nil {
		return err
	}
	_, err = v.db.ExecContext(ctx, `
		INSERT INTO credentials (slot, identifier, sealed, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			identifier = excluded.identifier,
			sealed = excluded.sealed,
			updated_at = excluded.updated_at`,
		c.Identifier, sealed, v.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	v.logger.Debug("credentials saved", zap.String("identifier", c.Identifier))
	return nil
}

// GetCredentials returns the stored credentials, or nil when none are saved.
func (v *Vault) GetCredentials(ctx context.Context) (*model.Credentials, error) {
	var (
		c      model.Credentials
		sealed []byte
	)
	err := v.db.QueryRowContext(ctx, `SELECT identifier, sealed FROM credentials WHERE slot = 1`).
		Scan(&c.Identifier, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	secret, err := unseal(v.key, sealed)
	if err != nil {
		return nil, err
	}
	c.Secret = string(secret)
	return &c, nil
}

// ClearCredentials removes the stored credentials.
func (v *Vault) ClearCredentials(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// SaveIdentity replaces the stored identity.
func (v *Vault) SaveIdentity(ctx context.Context, id model.Identity) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO identity (slot, uid, email, username, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			uid = excluded.uid,
			email = excluded.email,
			username = excluded.username,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		id.ID, id.Email, id.Username, unixNano(id.CreatedAt), v.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// GetIdentity returns the stored identity, or nil when none is saved.
func (v *Vault) GetIdentity(ctx context.Context) (*model.Identity, error) {
	var (
		id      model.Identity
		created int64
	)
	err := v.db.QueryRowContext(ctx, `SELECT uid, email, username, created_at FROM identity WHERE slot = 1`).
		Scan(&id.ID, &id.Email, &id.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if created != 0 {
		id.CreatedAt = time.Unix(0, created).UTC()
	}
	return &id, nil
}

// ClearIdentity removes the stored identity.
func (v *Vault) ClearIdentity(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, `DELETE FROM identity`); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// Clear removes credentials and identity in one transaction.
func (v *Vault) Clear(ctx context.Context) error {
	err := v.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"credentials", "identity"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.logger.Info("vault cleared")
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
