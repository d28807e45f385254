package job

import (
	"context"
	"log/slog"
	"time"

	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/queue"
	"github.com/postpilot/scheduler/internal/repository"
)

// StuckRecoveryJob repairs items stranded in PUBLISHING. No transaction
// spans the platform call, so a worker crash between claim and final
// status leaves the item claimed forever; anything PUBLISHING for longer
// than the publish time budget is treated as a dead attempt and either
// requeued or failed terminally.
type StuckRecoveryJob struct {
	cfg config.Publish
	pr  repository.PostRepository
	pir repository.PostItemRepository
	jr  repository.PublishJobRepository
	enq queue.Enqueuer
}

func NewStuckRecoveryJob(
	cfg config.Publish,
	pr repository.PostRepository,
	pir repository.PostItemRepository,
	jr repository.PublishJobRepository,
	enq queue.Enqueuer) *StuckRecoveryJob {
	return &StuckRecoveryJob{
		cfg: cfg,
		pr:  pr,
		pir: pir,
		jr:  jr,
		enq: enq,
	}
}

func (j *StuckRecoveryJob) Run() {
	ctx := context.Background()

	cutoff := time.Now().Add(-j.cfg.TimeBudget())
	items, err := j.pir.ListStuckPublishing(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, item := range items {
		j.recoverItem(ctx, item)
	}
}

func (j *StuckRecoveryJob) recoverItem(ctx context.Context, item *models.PostItem) {
	logger := slog.With("post_item_id", item.ID)

	job, err := j.jr.GetByPostItemID(ctx, item.ID)
	if err != nil {
		logger.Error("error loading publish job", "err", err)
		return
	}
	if job == nil {
		logger.Error("stuck item has no publish job, failing it")
		j.pir.MarkFailed(ctx, item.ID, "publish attempt lost")
		j.rollUp(ctx, item.PostID)
		return
	}

	// The claim consumed an attempt the crashed worker never accounted for.
	attempt := job.Attempts + 1

	if attempt < job.MaxAttempts {
		logger.Info("recovering stuck post item", "attempt", attempt)

		if err := j.pir.Requeue(ctx, item.ID, "publish attempt timed out mid-flight"); err != nil {
			logger.Error("error requeueing stuck item", "err", err)
			return
		}
		if err := j.jr.ScheduleRetry(ctx, job.ID, attempt, time.Now(), "publish attempt timed out mid-flight"); err != nil {
			logger.Error("error scheduling retry", "err", err)
		}
		payload := queue.PublishItemPayload{PostItemID: item.ID, Attempt: attempt}
		if err := queue.EnqueuePublishItem(j.enq, payload, 0); err != nil {
			logger.Error("error enqueueing recovered item", "err", err)
		}
		return
	}

	logger.Info("stuck post item out of attempts, failing")
	if err := j.pir.MarkFailed(ctx, item.ID, "publish attempts exhausted after worker crash"); err != nil {
		logger.Error("error failing stuck item", "err", err)
		return
	}
	j.jr.MarkDone(ctx, job.ID)
	j.rollUp(ctx, item.PostID)
}

func (j *StuckRecoveryJob) rollUp(ctx context.Context, postID int64) {
	statuses, err := j.pir.ListStatusesByPostID(ctx, postID)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if err := j.pr.UpdateStatus(ctx, models.RollUpStatus(statuses), postID); err != nil {
		slog.Info(err.Error())
	}
}
