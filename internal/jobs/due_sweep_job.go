package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/postpilot/scheduler/internal/queue"
	"github.com/postpilot/scheduler/internal/repository"
)

// DueSweepJob re-enqueues due pending jobs. The publish_jobs table is
// authoritative: the asynq task enqueued at scheduling time is only a
// delivery mechanism, so a lost or never-enqueued task is repaired here.
// Task ids dedupe against anything still sitting in the queue.
type DueSweepJob struct {
	jr  repository.PublishJobRepository
	enq queue.Enqueuer
}

func NewDueSweepJob(jr repository.PublishJobRepository, enq queue.Enqueuer) *DueSweepJob {
	return &DueSweepJob{jr: jr, enq: enq}
}

func (j *DueSweepJob) Run() {
	ctx := context.Background()

	jobs, err := j.jr.ListDuePending(ctx, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, job := range jobs {
		payload := queue.PublishItemPayload{PostItemID: job.PostItemID, Attempt: job.Attempts}
		err := queue.EnqueuePublishItem(j.enq, payload, 0)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			slog.Info("unable to enqueue due publish job", "job_id", job.ID, "err", err)
		}
	}
}
