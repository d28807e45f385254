package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/queue"
)

type fakePostRepo struct {
	statuses map[int64]string
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) GetByBrandID(ctx context.Context, brandID int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) CheckByBrandID(ctx context.Context, postID, brandID int64) (bool, error) {
	return true, nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.statuses[postID] = status
	return nil
}

type fakeItemRepo struct {
	items map[int64]*models.PostItem
	stuck []*models.PostItem
}

func (r *fakeItemRepo) Create(ctx context.Context, tx *sql.Tx, item *models.PostItem) (int64, error) {
	return 0, nil
}

func (r *fakeItemRepo) GetByID(ctx context.Context, id int64) (*models.PostItem, error) {
	return r.items[id], nil
}

func (r *fakeItemRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) ListStatusesByPostID(ctx context.Context, postID int64) ([]string, error) {
	var statuses []string
	for _, item := range r.items {
		if item.PostID == postID {
			statuses = append(statuses, item.Status)
		}
	}
	return statuses, nil
}

func (r *fakeItemRepo) ClaimForPublishing(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (r *fakeItemRepo) MarkPublished(ctx context.Context, id int64, externalPostID string) error {
	return nil
}

func (r *fakeItemRepo) MarkFailed(ctx context.Context, id int64, lastError string) error {
	r.items[id].Status = models.ItemStatusFailed
	r.items[id].LastError = lastError
	return nil
}

func (r *fakeItemRepo) Requeue(ctx context.Context, id int64, lastError string) error {
	r.items[id].Status = models.ItemStatusScheduled
	r.items[id].LastError = lastError
	return nil
}

func (r *fakeItemRepo) ListStuckPublishing(ctx context.Context, olderThan time.Time) ([]*models.PostItem, error) {
	return r.stuck, nil
}

type fakeJobRepo struct {
	jobs []*models.PublishJob
	due  []*models.PublishJob
}

func (r *fakeJobRepo) Create(ctx context.Context, tx *sql.Tx, job *models.PublishJob) (int64, error) {
	return 0, nil
}

func (r *fakeJobRepo) GetByPostItemID(ctx context.Context, postItemID int64) (*models.PublishJob, error) {
	for _, job := range r.jobs {
		if job.PostItemID == postItemID {
			return job, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) ListDuePending(ctx context.Context, now time.Time) ([]*models.PublishJob, error) {
	return r.due, nil
}

func (r *fakeJobRepo) ScheduleRetry(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error {
	for _, job := range r.jobs {
		if job.ID == id {
			job.Attempts = attempts
			job.NextRunAt = nextRunAt
			job.LastError = lastError
		}
	}
	return nil
}

func (r *fakeJobRepo) MarkDone(ctx context.Context, id int64) error {
	for _, job := range r.jobs {
		if job.ID == id {
			job.Status = models.JobStatusDone
		}
	}
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func testPublishConfig() config.Publish {
	return config.Publish{
		RequestTimeout:  time.Second,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
		MaxJobRetries:   3,
		RetryBackoff:    time.Minute,
	}
}

func TestStuckRecovery_RequeuesWithAttemptsLeft(t *testing.T) {
	stuck := &models.PostItem{ID: 1, PostID: 100, Status: models.ItemStatusPublishing}
	pir := &fakeItemRepo{items: map[int64]*models.PostItem{1: stuck}, stuck: []*models.PostItem{stuck}}
	jr := &fakeJobRepo{jobs: []*models.PublishJob{{ID: 201, PostItemID: 1, Status: models.JobStatusPending, Attempts: 0, MaxAttempts: 3}}}
	pr := &fakePostRepo{statuses: make(map[int64]string)}
	enq := &fakeEnqueuer{}

	NewStuckRecoveryJob(testPublishConfig(), pr, pir, jr, enq).Run()

	if stuck.Status != models.ItemStatusScheduled {
		t.Fatalf("expected stuck item requeued, got %q", stuck.Status)
	}
	if jr.jobs[0].Attempts != 1 {
		t.Errorf("expected the lost claim counted as an attempt, got %d", jr.jobs[0].Attempts)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("expected one re-enqueued task, got %d", len(enq.tasks))
	}

	var payload queue.PublishItemPayload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.PostItemID != 1 || payload.Attempt != 1 {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestStuckRecovery_FailsWhenOutOfAttempts(t *testing.T) {
	stuck := &models.PostItem{ID: 1, PostID: 100, Status: models.ItemStatusPublishing}
	pir := &fakeItemRepo{items: map[int64]*models.PostItem{1: stuck}, stuck: []*models.PostItem{stuck}}
	jr := &fakeJobRepo{jobs: []*models.PublishJob{{ID: 201, PostItemID: 1, Status: models.JobStatusPending, Attempts: 2, MaxAttempts: 3}}}
	pr := &fakePostRepo{statuses: make(map[int64]string)}
	enq := &fakeEnqueuer{}

	NewStuckRecoveryJob(testPublishConfig(), pr, pir, jr, enq).Run()

	if stuck.Status != models.ItemStatusFailed {
		t.Fatalf("expected stuck item failed, got %q", stuck.Status)
	}
	if jr.jobs[0].Status != models.JobStatusDone {
		t.Errorf("expected job closed, got %q", jr.jobs[0].Status)
	}
	if len(enq.tasks) != 0 {
		t.Errorf("exhausted item must not be re-enqueued, got %d tasks", len(enq.tasks))
	}
	if pr.statuses[100] != models.PostStatusFailed {
		t.Errorf("expected post rolled up to failed, got %q", pr.statuses[100])
	}
}

func TestStuckRecovery_FailsItemWithoutJob(t *testing.T) {
	stuck := &models.PostItem{ID: 1, PostID: 100, Status: models.ItemStatusPublishing}
	pir := &fakeItemRepo{items: map[int64]*models.PostItem{1: stuck}, stuck: []*models.PostItem{stuck}}
	pr := &fakePostRepo{statuses: make(map[int64]string)}

	NewStuckRecoveryJob(testPublishConfig(), pr, pir, &fakeJobRepo{}, &fakeEnqueuer{}).Run()

	if stuck.Status != models.ItemStatusFailed {
		t.Fatalf("expected orphaned item failed, got %q", stuck.Status)
	}
}

func TestDueSweep_EnqueuesDueJobs(t *testing.T) {
	jr := &fakeJobRepo{due: []*models.PublishJob{
		{ID: 201, PostItemID: 1, Status: models.JobStatusPending, Attempts: 0},
		{ID: 202, PostItemID: 2, Status: models.JobStatusPending, Attempts: 2},
	}}
	enq := &fakeEnqueuer{}

	NewDueSweepJob(jr, enq).Run()

	if len(enq.tasks) != 2 {
		t.Fatalf("expected 2 enqueued tasks, got %d", len(enq.tasks))
	}

	var payload queue.PublishItemPayload
	if err := json.Unmarshal(enq.tasks[1].Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.PostItemID != 2 || payload.Attempt != 2 {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestDueSweep_IgnoresTaskIDConflicts(t *testing.T) {
	jr := &fakeJobRepo{due: []*models.PublishJob{{ID: 201, PostItemID: 1, Status: models.JobStatusPending}}}
	enq := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}

	// Must not panic or loop; the conflict just means the task is already queued.
	NewDueSweepJob(jr, enq).Run()

	if len(enq.tasks) != 0 {
		t.Fatalf("expected no tasks recorded, got %d", len(enq.tasks))
	}
}
