package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postpilot/scheduler/internal/models"
)

type PostItemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, item *models.PostItem) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostItem, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostItem, error)
	ListStatusesByPostID(ctx context.Context, postID int64) ([]string, error)
	ClaimForPublishing(ctx context.Context, id int64) (bool, error)
	MarkPublished(ctx context.Context, id int64, externalPostID string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	Requeue(ctx context.Context, id int64, lastError string) error
	ListStuckPublishing(ctx context.Context, olderThan time.Time) ([]*models.PostItem, error)
}

type postItemRepository struct {
	db *sql.DB
}

func NewPostItemRepository(db *sql.DB) PostItemRepository {
	return &postItemRepository{db: db}
}

const postItemColumns = `id, post_id, account_id, platform, caption, hashtags, media, status, external_post_id, last_error, attempts, created_at, updated_at`

func (r *postItemRepository) Create(ctx context.Context, tx *sql.Tx, item *models.PostItem) (int64, error) {
	query := `
		INSERT INTO post_items (post_id, account_id, platform, caption, hashtags, media, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	hashtags, err := json.Marshal(item.Hashtags)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	media, err := json.Marshal(item.Media)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, item.PostID, item.AccountID, item.Platform, item.Caption, hashtags, media, item.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, item.PostID, item.AccountID, item.Platform, item.Caption, hashtags, media, item.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPostItem(row interface{ Scan(...interface{}) error }) (*models.PostItem, error) {
	var item models.PostItem
	var hashtags, media []byte

	err := row.Scan(
		&item.ID,
		&item.PostID,
		&item.AccountID,
		&item.Platform,
		&item.Caption,
		&hashtags,
		&media,
		&item.Status,
		&item.ExternalPostID,
		&item.LastError,
		&item.Attempts,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(hashtags, &item.Hashtags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(media, &item.Media); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *postItemRepository) GetByID(ctx context.Context, id int64) (*models.PostItem, error) {
	query := `SELECT ` + postItemColumns + ` FROM post_items WHERE id = $1`

	item, err := scanPostItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return item, nil
}

func (r *postItemRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostItem, error) {
	query := `SELECT ` + postItemColumns + ` FROM post_items WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.PostItem
	for rows.Next() {
		item, err := scanPostItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *postItemRepository) ListStatusesByPostID(ctx context.Context, postID int64) ([]string, error) {
	query := `SELECT status FROM post_items WHERE post_id = $1`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ClaimForPublishing is the optimistic claim: the item moves to publishing
// only if it is still scheduled and its post is not cancelled, so a
// duplicate or stale job delivery, or a cancel racing a just-due job,
// finds zero rows and becomes a no-op. The post-status condition lives in
// the same statement as the claim; a separate read would leave a window.
func (r *postItemRepository) ClaimForPublishing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE post_items
		SET status = $1,
			attempts = attempts + 1,
			updated_at = $2
		FROM posts
		WHERE post_items.id = $3
			AND post_items.status = $4
			AND posts.id = post_items.post_id
			AND posts.status <> $5
	`

	result, err := r.db.ExecContext(ctx, query, models.ItemStatusPublishing, time.Now(), id, models.ItemStatusScheduled, models.PostStatusCancelled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return rows == 1, nil
}

func (r *postItemRepository) MarkPublished(ctx context.Context, id int64, externalPostID string) error {
	query := `
		UPDATE post_items
		SET status = $1,
			external_post_id = $2,
			last_error = '',
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.ItemStatusPublished, externalPostID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postItemRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE post_items
		SET status = $1,
			last_error = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.ItemStatusFailed, lastError, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Requeue puts a publishing item back to scheduled so a later claim can
// pick it up again.
func (r *postItemRepository) Requeue(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE post_items
		SET status = $1,
			last_error = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.ItemStatusScheduled, lastError, time.Now(), id, models.ItemStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postItemRepository) ListStuckPublishing(ctx context.Context, olderThan time.Time) ([]*models.PostItem, error) {
	query := `SELECT ` + postItemColumns + ` FROM post_items WHERE status = $1 AND updated_at < $2`

	rows, err := r.db.QueryContext(ctx, query, models.ItemStatusPublishing, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.PostItem
	for rows.Next() {
		item, err := scanPostItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
