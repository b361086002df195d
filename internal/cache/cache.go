package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/matheus3301/chatroom/internal/cache/migrations"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/store"
	"go.uber.org/zap"
)

const lastSyncKey = "last_sync"

// Stats summarizes the cached room.
type Stats struct {
	MessageCount int
	LastSync     time.Time // zero if never synced
}

// Store is the durable mirror of the last good snapshot. It is best-effort:
// every failure is logged and swallowed so a broken cache never interrupts
// message delivery.
type Store struct {
	db     *store.DB
	logger *zap.Logger
	now    func() time.Time
}

// New wraps an already migrated database.
func New(db *store.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// Open opens the cache database at path. A file that cannot be opened or
// migrated is moved aside and replaced by an empty cache.
func Open(path string, logger *zap.Logger) (*Store, error) {
	logger = logging.OrNop(logger)

	db, result, err := store.OpenMigrated(path, migrations.FS)
	if err != nil {
		logger.Warn("cache unusable, starting empty", zap.String("path", path), zap.Error(err))
		if qerr := quarantine(path); qerr != nil {
			return nil, fmt.Errorf("quarantine cache: %w", qerr)
		}
		db, result, err = store.OpenMigrated(path, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}
	logger.Info("cache opened", zap.String("path", path), zap.Uint("schema", result.Version))
	return New(db, logger), nil
}

// quarantine renames a broken database and drops its WAL side files.
func quarantine(path string) error {
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the cached message list with msgs, preserving order, and
// records the sync timestamp.
func (s *Store) Save(ctx context.Context, msgs []model.Message) {
	now := s.now()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (position, id, text, author_name, author_id, created_at, image_data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, m := range msgs {
			if _, err := stmt.ExecContext(ctx, i, m.ID, m.Text, m.AuthorName, m.AuthorID, encodeTime(m.CreatedAt), m.ImageData); err != nil {
				return fmt.Errorf("insert message %q: %w", m.ID, err)
			}
		}
		return putState(ctx, tx, lastSyncKey, strconv.FormatInt(now.UnixMilli(), 10), now)
	})
	if err != nil {
		s.logger.Error("failed to save messages", zap.Error(err), zap.Int("count", len(msgs)))
		return
	}
	s.logger.Debug("messages cached", zap.Int("count", len(msgs)))
}

// Load returns the cached messages in saved order. It never fails: a missing
// or unreadable cache yields an empty list.
func (s *Store) Load(ctx context.Context) []model.Message {
	msgs, err := s.load(ctx)
	if err != nil {
		s.logger.Error("failed to load messages", zap.Error(err))
		return []model.Message{}
	}
	s.logger.Debug("messages loaded from cache", zap.Int("count", len(msgs)))
	return msgs
}

func (s *Store) load(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, author_name, author_id, created_at, image_data
		FROM messages
		ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m       model.Message
			created sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Text, &m.AuthorName, &m.AuthorID, &created, &m.ImageData); err != nil {
			return nil, err
		}
		m.CreatedAt = decodeTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordSyncTimestamp stores t as the last successful sync time.
func (s *Store) RecordSyncTimestamp(ctx context.Context, t time.Time) {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return putState(ctx, tx, lastSyncKey, strconv.FormatInt(t.UnixMilli(), 10), s.now())
	})
	if err != nil {
		s.logger.Error("failed to record sync timestamp", zap.Error(err))
	}
}

// LastSync returns the last successful sync time, if any.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, lastSyncKey).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("failed to read sync timestamp", zap.Error(err))
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.logger.Warn("malformed sync timestamp", zap.String("value", value))
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Clear drops every cached message, image URL and sync checkpoint.
func (s *Store) Clear(ctx context.Context) {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "image_urls", "sync_state"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to clear cache", zap.Error(err))
		return
	}
	s.logger.Info("cache cleared")
}

// Stats returns the cached message count and last sync time.
func (s *Store) Stats(ctx context.Context) Stats {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.MessageCount); err != nil {
		s.logger.Error("failed to count messages", zap.Error(err))
	}
	if t, ok := s.LastSync(ctx); ok {
		st.LastSync = t
	}
	return st
}

func putState(ctx context.Context, tx *sql.Tx, key, value string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("put sync state %q: %w", key, err)
	}
	return nil
}

func encodeTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func decodeTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
