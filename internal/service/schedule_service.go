package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/internal/repository"
	"github.com/postpilot/scheduler/internal/transfer"
)

// Carousel bounds imposed by the Instagram protocol.
const (
	carouselMinItems = 2
	carouselMaxItems = 10
)

type ScheduleService interface {
	Schedule(ctx context.Context, brandID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResult, time.Duration, error)
	List(ctx context.Context, brandID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, brandID, postID int64) (*models.Post, []*models.PostItem, error)
	Cancel(ctx context.Context, brandID, postID int64) error
	History(ctx context.Context, brandID int64) ([]*models.PostingHistory, error)
}

type scheduleService struct {
	db       *sql.DB
	cfg      config.Publish
	validate *validator.Validate
	pr       repository.PostRepository
	pir      repository.PostItemRepository
	jr       repository.PublishJobRepository
	ar       repository.SocialAccountRepository
	ph       repository.PostingHistoryRepository
}

func NewScheduleService(
	db *sql.DB,
	cfg config.Publish,
	pr repository.PostRepository,
	pir repository.PostItemRepository,
	jr repository.PublishJobRepository,
	ar repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository) ScheduleService {
	return &scheduleService{
		db:       db,
		cfg:      cfg,
		validate: validator.New(),
		pr:       pr,
		pir:      pir,
		jr:       jr,
		ar:       ar,
		ph:       ph,
	}
}

func validationError(format string, args ...interface{}) error {
	return &platform.Error{Kind: platform.KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Schedule validates the request and atomically creates the post, one
// post item per (account, content) pairing, and one publish job per item.
// Nothing is left schedulable if any part of the creation fails. The
// returned duration is the delay until the jobs are due.
func (s *scheduleService) Schedule(ctx context.Context, brandID int64, req *transfer.ScheduleRequest) (*transfer.ScheduleResult, time.Duration, error) {
	scheduledTime, accounts, err := s.validateRequest(ctx, brandID, req)
	if err != nil {
		return nil, 0, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		BrandID:       brandID,
		Status:        models.PostStatusScheduled,
		ScheduledTime: scheduledTime,
	}
	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}

	itemIDs := make([]int64, 0, len(req.Items))
	for i, reqItem := range req.Items {
		item := models.PostItem{
			PostID:    postID,
			AccountID: reqItem.AccountID,
			Platform:  accounts[i].Platform,
			Caption:   reqItem.Caption,
			Hashtags:  reqItem.Hashtags,
			Media:     toMediaRefs(reqItem.Media),
			Status:    models.ItemStatusScheduled,
		}

		var itemID int64
		itemID, err = s.pir.Create(ctx, tx, &item)
		if err != nil {
			return nil, 0, fmt.Errorf("error creating post item: %w", err)
		}

		job := models.PublishJob{
			PostItemID:  itemID,
			BrandID:     brandID,
			Status:      models.JobStatusPending,
			RunAt:       scheduledTime,
			MaxAttempts: s.cfg.MaxJobRetries,
			NextRunAt:   scheduledTime,
		}
		if _, err = s.jr.Create(ctx, tx, &job); err != nil {
			return nil, 0, fmt.Errorf("error creating publish job: %w", err)
		}

		itemIDs = append(itemIDs, itemID)
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	delay := time.Until(scheduledTime)
	if delay < 0 {
		delay = 0
	}

	return &transfer.ScheduleResult{PostID: postID, PostItemIDs: itemIDs}, delay, nil
}

// validateRequest runs every boundary check before anything is
// persisted: shape via struct tags, publish time strictly in
// the future, every account active and owned by the brand, carousel
// bounds, and video-only fields kept off images. Accounts come back in
// request order so the caller can read each item's platform tag.
func (s *scheduleService) validateRequest(ctx context.Context, brandID int64, req *transfer.ScheduleRequest) (time.Time, []*models.SocialAccount, error) {
	if req == nil {
		return time.Time{}, nil, validationError("schedule request is nil")
	}

	if err := s.validate.Struct(req); err != nil {
		return time.Time{}, nil, validationError("invalid schedule request: %v", err)
	}

	scheduledTime, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return time.Time{}, nil, validationError("invalid scheduled time format: %v", err)
	}
	if !scheduledTime.After(time.Now()) {
		return time.Time{}, nil, validationError("scheduled time must be in the future")
	}

	accounts := make([]*models.SocialAccount, 0, len(req.Items))
	for _, item := range req.Items {
		if len(item.Media) > 1 && (len(item.Media) < carouselMinItems || len(item.Media) > carouselMaxItems) {
			return time.Time{}, nil, validationError("carousel must have between %d and %d media items", carouselMinItems, carouselMaxItems)
		}

		for _, m := range item.Media {
			if m.Kind != models.MediaKindVideo && (m.CoverURL != "" || m.ShareToFeed) {
				return time.Time{}, nil, validationError("cover_url and share_to_feed only apply to videos")
			}
		}

		active, err := s.ar.CheckActiveByBrandID(ctx, item.AccountID, brandID)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("error checking account %d: %w", item.AccountID, err)
		}
		if !active {
			return time.Time{}, nil, validationError("account %d is not an active account of this brand", item.AccountID)
		}

		acc, err := s.ar.GetByID(ctx, item.AccountID)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("error loading account %d: %w", item.AccountID, err)
		}
		if acc == nil {
			return time.Time{}, nil, validationError("account %d does not exist", item.AccountID)
		}

		accounts = append(accounts, acc)
	}

	return scheduledTime, accounts, nil
}

func toMediaRefs(media []transfer.ScheduleMedia) []models.MediaRef {
	refs := make([]models.MediaRef, 0, len(media))
	for _, m := range media {
		refs = append(refs, models.MediaRef{
			Kind:        m.Kind,
			URL:         m.URL,
			CoverURL:    m.CoverURL,
			ShareToFeed: m.ShareToFeed,
		})
	}
	return refs
}

func (s *scheduleService) List(ctx context.Context, brandID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByBrandID(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *scheduleService) PostInfo(ctx context.Context, brandID, postID int64) (*models.Post, []*models.PostItem, error) {
	isValid, err := s.pr.CheckByBrandID(ctx, postID, brandID)
	if err != nil {
		return nil, nil, err
	}
	if !isValid {
		return nil, nil, validationError("post %d does not exist", postID)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting post info: %w", err)
	}

	items, err := s.pir.ListByPostID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting post items: %w", err)
	}

	return post, items, nil
}

// History lists the per-attempt publish records for a brand, newest first.
func (s *scheduleService) History(ctx context.Context, brandID int64) ([]*models.PostingHistory, error) {
	records, err := s.ph.ListByBrandID(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("error listing posting history: %w", err)
	}
	return records, nil
}

// Cancel marks a post cancelled so its pending jobs no-op at claim time.
// Once any item has begun publishing the post can no longer be cancelled.
func (s *scheduleService) Cancel(ctx context.Context, brandID, postID int64) error {
	isValid, err := s.pr.CheckByBrandID(ctx, postID, brandID)
	if err != nil {
		return err
	}
	if !isValid {
		return validationError("post %d does not exist", postID)
	}

	statuses, err := s.pir.ListStatusesByPostID(ctx, postID)
	if err != nil {
		return err
	}
	for _, status := range statuses {
		if status != models.ItemStatusScheduled {
			return validationError("post %d has items already publishing", postID)
		}
	}

	if err := s.pr.UpdateStatus(ctx, models.PostStatusCancelled, postID); err != nil {
		return fmt.Errorf("error cancelling post: %w", err)
	}

	slog.Info("post cancelled", "post_id", postID)
	return nil
}
