package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postpilot/scheduler/internal/models"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	CheckActiveByBrandID(ctx context.Context, accountID, brandID int64) (bool, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `
		SELECT id, brand_id, platform, account_id, account_username, access_token, token_expires_at, account_status, created_at, updated_at
		FROM social_accounts
		WHERE id = $1
	`

	var acc models.SocialAccount
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&acc.ID,
		&acc.BrandID,
		&acc.Platform,
		&acc.AccountID,
		&acc.AccountUsername,
		&acc.AccessToken,
		&acc.TokenExpiresAt,
		&acc.AccountStatus,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &acc, nil
}

func (r *socialAccountRepository) CheckActiveByBrandID(ctx context.Context, accountID, brandID int64) (bool, error) {
	query := `SELECT 1 FROM social_accounts WHERE id = $1 AND brand_id = $2 AND account_status = $3`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, brandID, models.AccountStatusActive).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}
