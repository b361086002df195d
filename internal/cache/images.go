package cache

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

// CacheImageURL remembers where the image of message imageID was made
// available locally.
func (s *Store) CacheImageURL(ctx context.Context, imageID, url string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO image_urls (image_id, url, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET url = excluded.url, updated_at = excluded.updated_at`,
		imageID, url, s.now().UnixMilli())
	if err != nil {
		s.logger.Error("failed to cache image url", zap.String("image_id", imageID), zap.Error(err))
	}
}

// CachedImageURL returns the remembered URL for imageID.
func (s *Store) CachedImageURL(ctx context.Context, imageID string) (string, bool) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT url FROM image_urls WHERE image_id = ?`, imageID).Scan(&url)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("failed to read image url", zap.String("image_id", imageID), zap.Error(err))
		}
		return "", false
	}
	return url, true
}

// ClearImageURL forgets the URL remembered for imageID.
func (s *Store) ClearImageURL(ctx context.Context, imageID string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM image_urls WHERE image_id = ?`, imageID); err != nil {
		s.logger.Error("failed to clear image url", zap.String("image_id", imageID), zap.Error(err))
	}
}
