package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

// MediaUsageRepository records that a hosted media asset was referenced by
// a published item. Writes are best-effort; the publish path never waits
// on them.
type MediaUsageRepository interface {
	MarkUsed(ctx context.Context, postItemID int64, mediaURLs []string) error
}

type mediaUsageRepository struct {
	db *sql.DB
}

func NewMediaUsageRepository(db *sql.DB) MediaUsageRepository {
	return &mediaUsageRepository{db: db}
}

func (r *mediaUsageRepository) MarkUsed(ctx context.Context, postItemID int64, mediaURLs []string) error {
	query := `
		INSERT INTO media_usage (post_item_id, media_url)
		VALUES ($1, $2)
		ON CONFLICT (post_item_id, media_url) DO NOTHING
	`

	for _, url := range mediaURLs {
		if _, err := r.db.ExecContext(ctx, query, postItemID, url); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}
