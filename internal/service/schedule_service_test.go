package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/internal/transfer"
)

type fakeAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) CheckActiveByBrandID(ctx context.Context, accountID, brandID int64) (bool, error) {
	acc := r.accounts[accountID]
	return acc != nil && acc.BrandID == brandID && acc.AccountStatus == models.AccountStatusActive, nil
}

type fakePostRepo struct {
	created       int
	checkResult   bool
	updatedStatus string
	updatedPostID int64
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.created++
	return int64(r.created), nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) GetByBrandID(ctx context.Context, brandID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) CheckByBrandID(ctx context.Context, postID, brandID int64) (bool, error) {
	return r.checkResult, nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.updatedStatus = status
	r.updatedPostID = postID
	return nil
}

type fakeItemRepo struct {
	statuses []string
	created  int
}

func (r *fakeItemRepo) Create(ctx context.Context, tx *sql.Tx, item *models.PostItem) (int64, error) {
	r.created++
	return int64(r.created), nil
}

func (r *fakeItemRepo) GetByID(ctx context.Context, id int64) (*models.PostItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) ListStatusesByPostID(ctx context.Context, postID int64) ([]string, error) {
	return r.statuses, nil
}

func (r *fakeItemRepo) ClaimForPublishing(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (r *fakeItemRepo) MarkPublished(ctx context.Context, id int64, externalPostID string) error {
	return nil
}

func (r *fakeItemRepo) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return nil
}

func (r *fakeItemRepo) Requeue(ctx context.Context, id int64, lastError string) error {
	return nil
}

func (r *fakeItemRepo) ListStuckPublishing(ctx context.Context, olderThan time.Time) ([]*models.PostItem, error) {
	return nil, nil
}

type fakeJobRepo struct {
	created int
}

func (r *fakeJobRepo) Create(ctx context.Context, tx *sql.Tx, job *models.PublishJob) (int64, error) {
	r.created++
	return int64(r.created), nil
}

func (r *fakeJobRepo) GetByPostItemID(ctx context.Context, postItemID int64) (*models.PublishJob, error) {
	return nil, nil
}

func (r *fakeJobRepo) ListDuePending(ctx context.Context, now time.Time) ([]*models.PublishJob, error) {
	return nil, nil
}

func (r *fakeJobRepo) ScheduleRetry(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error {
	return nil
}

func (r *fakeJobRepo) MarkDone(ctx context.Context, id int64) error {
	return nil
}

type fakeHistoryRepo struct {
	records []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.records = append(r.records, ph)
	return int64(len(r.records)), nil
}

func (r *fakeHistoryRepo) ListByBrandID(ctx context.Context, brandID int64) ([]*models.PostingHistory, error) {
	var out []*models.PostingHistory
	for _, ph := range r.records {
		if ph.BrandID == brandID {
			out = append(out, ph)
		}
	}
	return out, nil
}

func testConfig() config.Publish {
	return config.Publish{
		RequestTimeout:  time.Second,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
		MaxJobRetries:   3,
		RetryBackoff:    time.Minute,
	}
}

func newTestService(accounts map[int64]*models.SocialAccount) (ScheduleService, *fakePostRepo, *fakeItemRepo, *fakeJobRepo) {
	pr := &fakePostRepo{}
	pir := &fakeItemRepo{}
	jr := &fakeJobRepo{}
	s := NewScheduleService(nil, testConfig(), pr, pir, jr, &fakeAccountRepo{accounts: accounts}, &fakeHistoryRepo{})
	return s, pr, pir, jr
}

func activeAccount(id, brandID int64) *models.SocialAccount {
	return &models.SocialAccount{
		ID:            id,
		BrandID:       brandID,
		Platform:      models.PlatformInstagram,
		AccountID:     "17841400000000000",
		AccountStatus: models.AccountStatusActive,
	}
}

func imageItem(accountID int64) transfer.ScheduleItem {
	return transfer.ScheduleItem{
		AccountID: accountID,
		Caption:   "hello",
		Media: []transfer.ScheduleMedia{
			{Kind: "image", URL: "https://cdn.example.com/a.jpg"},
		},
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var pe *platform.Error
	if !errors.As(err, &pe) || pe.Kind != platform.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	s, pr, pir, jr := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 10)})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(-time.Hour).Format(time.RFC3339),
		Items:         []transfer.ScheduleItem{imageItem(1)},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)

	if pr.created != 0 || pir.created != 0 || jr.created != 0 {
		t.Error("nothing may be created when the schedule time is rejected")
	}
}

func TestSchedule_RejectsCurrentTime(t *testing.T) {
	s, _, _, jr := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 10)})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Format(time.RFC3339),
		Items:         []transfer.ScheduleItem{imageItem(1)},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
	if jr.created != 0 {
		t.Error("no jobs may be created for a non-future time")
	}
}

func TestSchedule_RejectsOversizedCarousel(t *testing.T) {
	s, _, _, _ := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 10)})

	item := transfer.ScheduleItem{AccountID: 1}
	for i := 0; i < 11; i++ {
		item.Media = append(item.Media, transfer.ScheduleMedia{Kind: "image", URL: "https://cdn.example.com/a.jpg"})
	}

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
		Items:         []transfer.ScheduleItem{item},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
}

func TestSchedule_RejectsMediaWithoutKind(t *testing.T) {
	s, _, _, _ := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 10)})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
		Items: []transfer.ScheduleItem{{
			AccountID: 1,
			Media:     []transfer.ScheduleMedia{{URL: "https://cdn.example.com/a.jpg"}},
		}},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
}

func TestSchedule_RejectsCoverOnImage(t *testing.T) {
	s, _, _, _ := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 10)})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
		Items: []transfer.ScheduleItem{{
			AccountID: 1,
			Media: []transfer.ScheduleMedia{
				{Kind: "image", URL: "https://cdn.example.com/a.jpg", CoverURL: "https://cdn.example.com/c.jpg"},
			},
		}},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
}

func TestSchedule_RejectsForeignAccount(t *testing.T) {
	s, _, _, jr := newTestService(map[int64]*models.SocialAccount{1: activeAccount(1, 99)})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
		Items:         []transfer.ScheduleItem{imageItem(1)},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
	if jr.created != 0 {
		t.Error("no jobs may be created for a foreign account")
	}
}

func TestSchedule_RejectsInactiveAccount(t *testing.T) {
	acc := activeAccount(1, 10)
	acc.AccountStatus = models.AccountStatusDisconnected
	s, _, _, _ := newTestService(map[int64]*models.SocialAccount{1: acc})

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
		Items:         []transfer.ScheduleItem{imageItem(1)},
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
}

func TestSchedule_RejectsEmptyItems(t *testing.T) {
	s, _, _, _ := newTestService(nil)

	req := &transfer.ScheduleRequest{
		ScheduledTime: time.Now().Add(time.Hour).Format(time.RFC3339),
	}

	_, _, err := s.Schedule(context.Background(), 10, req)
	assertValidationError(t, err)
}

func TestHistory_FiltersByBrand(t *testing.T) {
	ph := &fakeHistoryRepo{records: []*models.PostingHistory{
		{ID: 1, BrandID: 10, PostItemID: 1, Attempt: 1},
		{ID: 2, BrandID: 99, PostItemID: 2, Attempt: 1},
	}}
	s := NewScheduleService(nil, testConfig(), &fakePostRepo{}, &fakeItemRepo{}, &fakeJobRepo{}, &fakeAccountRepo{}, ph)

	records, err := s.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != 1 {
		t.Errorf("expected only brand 10 records, got %+v", records)
	}
}

func TestCancel_RejectsPublishingItems(t *testing.T) {
	s, pr, pir, _ := newTestService(nil)
	pr.checkResult = true
	pir.statuses = []string{models.ItemStatusScheduled, models.ItemStatusPublishing}

	err := s.Cancel(context.Background(), 10, 5)
	assertValidationError(t, err)
	if pr.updatedStatus != "" {
		t.Errorf("post status must not change, got %q", pr.updatedStatus)
	}
}

func TestCancel_MarksPostCancelled(t *testing.T) {
	s, pr, pir, _ := newTestService(nil)
	pr.checkResult = true
	pir.statuses = []string{models.ItemStatusScheduled, models.ItemStatusScheduled}

	if err := s.Cancel(context.Background(), 10, 5); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if pr.updatedStatus != models.PostStatusCancelled {
		t.Errorf("expected post marked cancelled, got %q", pr.updatedStatus)
	}
	if pr.updatedPostID != 5 {
		t.Errorf("expected post 5 updated, got %d", pr.updatedPostID)
	}
}
