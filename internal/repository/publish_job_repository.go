package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/scheduler/internal/models"
)

type PublishJobRepository interface {
	Create(ctx context.Context, tx *sql.Tx, job *models.PublishJob) (int64, error)
	GetByPostItemID(ctx context.Context, postItemID int64) (*models.PublishJob, error)
	ListDuePending(ctx context.Context, now time.Time) ([]*models.PublishJob, error)
	ScheduleRetry(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error
	MarkDone(ctx context.Context, id int64) error
}

type publishJobRepository struct {
	db *sql.DB
}

func NewPublishJobRepository(db *sql.DB) PublishJobRepository {
	return &publishJobRepository{db: db}
}

const publishJobColumns = `id, post_item_id, brand_id, status, run_at, attempts, max_attempts, next_run_at, last_error, created_at, updated_at`

func (r *publishJobRepository) Create(ctx context.Context, tx *sql.Tx, job *models.PublishJob) (int64, error) {
	query := `
		INSERT INTO publish_jobs (post_item_id, brand_id, status, run_at, max_attempts, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, job.PostItemID, job.BrandID, job.Status, job.RunAt, job.MaxAttempts, job.NextRunAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, job.PostItemID, job.BrandID, job.Status, job.RunAt, job.MaxAttempts, job.NextRunAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPublishJob(row interface{ Scan(...interface{}) error }) (*models.PublishJob, error) {
	var job models.PublishJob
	err := row.Scan(
		&job.ID,
		&job.PostItemID,
		&job.BrandID,
		&job.Status,
		&job.RunAt,
		&job.Attempts,
		&job.MaxAttempts,
		&job.NextRunAt,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *publishJobRepository) GetByPostItemID(ctx context.Context, postItemID int64) (*models.PublishJob, error) {
	query := `SELECT ` + publishJobColumns + ` FROM publish_jobs WHERE post_item_id = $1`

	job, err := scanPublishJob(r.db.QueryRowContext(ctx, query, postItemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *publishJobRepository) ListDuePending(ctx context.Context, now time.Time) ([]*models.PublishJob, error) {
	query := `SELECT ` + publishJobColumns + ` FROM publish_jobs WHERE status = $1 AND next_run_at <= $2`

	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PublishJob
	for rows.Next() {
		job, err := scanPublishJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *publishJobRepository) ScheduleRetry(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error {
	query := `
		UPDATE publish_jobs
		SET attempts = $1,
			next_run_at = $2,
			last_error = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, attempts, nextRunAt, lastError, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *publishJobRepository) MarkDone(ctx context.Context, id int64) error {
	query := `
		UPDATE publish_jobs
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.JobStatusDone, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
