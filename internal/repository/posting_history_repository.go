package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postpilot/scheduler/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByBrandID(ctx context.Context, brandID int64) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (brand_id, post_item_id, account_id, attempt, trace_id, error_kind, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.BrandID, ph.PostItemID, ph.AccountID, ph.Attempt, ph.TraceID, ph.ErrorKind, ph.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) ListByBrandID(ctx context.Context, brandID int64) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, brand_id, post_item_id, account_id, attempt, trace_id, error_kind, error_message, created_at
		FROM posting_history
		WHERE brand_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, brandID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.BrandID, &ph.PostItemID, &ph.AccountID, &ph.Attempt, &ph.TraceID, &ph.ErrorKind, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, nil
}
