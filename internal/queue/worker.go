package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/platform"
)

const maxRetryBackoff = 30 * time.Minute

// HandlePublishItemTask executes one publish attempt for a post item. It
// always returns nil for pipeline failures: retry and terminal-state
// decisions are made here, not by asynq.
func (q *Queue) HandlePublishItemTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishItemPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	q.PublishItem(ctx, payload.PostItemID)
	return nil
}

func (q *Queue) PublishItem(ctx context.Context, postItemID int64) {
	traceID, _ := gonanoid.New()
	logger := slog.With("post_item_id", postItemID, "trace_id", traceID)

	item, err := q.pir.GetByID(ctx, postItemID)
	if err != nil {
		logger.Error("error loading post item", "err", err)
		return
	}
	if item == nil {
		logger.Info("post item no longer exists, skipping")
		return
	}

	job, err := q.jr.GetByPostItemID(ctx, postItemID)
	if err != nil || job == nil {
		logger.Error("no publish job for post item", "err", err)
		return
	}
	if job.Status == models.JobStatusDone {
		return
	}

	// Cancellation is checked at claim time, not enqueue time; a delayed
	// task for a cancelled post must be an observable no-op.
	post, err := q.pr.GetByID(ctx, item.PostID)
	if err != nil {
		logger.Error("error loading post", "err", err)
		return
	}
	if post == nil || post.Status == models.PostStatusCancelled {
		logger.Info("post cancelled or gone, skipping publish")
		q.jr.MarkDone(ctx, job.ID)
		return
	}

	// Optimistic claim: at most one attempt is active per item. A
	// redelivered or duplicate task finds the item out of scheduled and
	// stops here, and the claim itself refuses cancelled posts, so a
	// cancel landing between the read above and this update loses too.
	claimed, err := q.pir.ClaimForPublishing(ctx, item.ID)
	if err != nil {
		logger.Error("error claiming post item", "err", err)
		return
	}
	if !claimed {
		logger.Info("post item already claimed, skipping", "status", item.Status)
		return
	}

	attempt := job.Attempts + 1
	result, pubErr := q.executePublish(ctx, item)

	q.recordHistory(ctx, item, job, attempt, traceID, pubErr)

	if pubErr == nil {
		q.completeItem(ctx, logger, item, job, result)
		return
	}
	q.failOrRetry(ctx, logger, item, job, attempt, pubErr)
}

// executePublish resolves the credential and runs the platform adapter.
// The adapter gets its own deadline so a wedged attempt cannot outlive the
// publish time budget the recovery sweep assumes.
func (q *Queue) executePublish(ctx context.Context, item *models.PostItem) (*platform.Result, error) {
	acc, err := q.ar.GetByID(ctx, item.AccountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, &platform.Error{Kind: platform.KindAuth, Message: "social account no longer exists"}
	}

	creds, err := q.cr.Resolve(ctx, acc)
	if err != nil {
		return nil, err
	}

	publisher, err := q.reg.Lookup(item.Platform)
	if err != nil {
		return nil, err
	}

	pubCtx, cancel := context.WithTimeout(ctx, q.cfg.TimeBudget())
	defer cancel()

	return publisher.Publish(pubCtx, creds, item)
}

func (q *Queue) completeItem(ctx context.Context, logger *slog.Logger, item *models.PostItem, job *models.PublishJob, result *platform.Result) {
	if err := q.pir.MarkPublished(ctx, item.ID, result.ExternalID); err != nil {
		logger.Error("error marking item published", "err", err)
		return
	}
	if err := q.jr.MarkDone(ctx, job.ID); err != nil {
		logger.Error("error marking job done", "err", err)
	}

	logger.Info("post item published", "external_post_id", result.ExternalID)

	// Best-effort side effect: a failure to enqueue is logged, never
	// surfaced to the publish result.
	urls := make([]string, 0, len(item.Media))
	for _, m := range item.Media {
		urls = append(urls, m.URL)
	}
	if err := EnqueueMediaUsage(q.enq, MediaUsagePayload{PostItemID: item.ID, MediaURLs: urls}); err != nil {
		logger.Error("error enqueueing media usage task", "err", err)
	}

	q.rollUpPostStatus(ctx, logger, item.PostID)
}

func (q *Queue) failOrRetry(ctx context.Context, logger *slog.Logger, item *models.PostItem, job *models.PublishJob, attempt int, pubErr error) {
	kind := platform.KindOf(pubErr)

	if platform.Retryable(pubErr) && attempt < job.MaxAttempts {
		backoff := retryBackoff(q.cfg.RetryBackoff, attempt)
		logger.Info("publish failed, retrying", "kind", kind, "attempt", attempt, "backoff", backoff, "err", pubErr)

		if err := q.pir.Requeue(ctx, item.ID, pubErr.Error()); err != nil {
			logger.Error("error requeueing post item", "err", err)
			return
		}
		if err := q.jr.ScheduleRetry(ctx, job.ID, attempt, time.Now().Add(backoff), pubErr.Error()); err != nil {
			logger.Error("error scheduling retry", "err", err)
		}
		if err := EnqueuePublishItem(q.enq, PublishItemPayload{PostItemID: item.ID, Attempt: attempt}, backoff); err != nil {
			// The due-job sweep picks it up from the jobs table.
			logger.Error("error enqueueing retry task", "err", err)
		}
		return
	}

	logger.Info("publish failed terminally", "kind", kind, "attempt", attempt, "err", pubErr)

	if err := q.pir.MarkFailed(ctx, item.ID, pubErr.Error()); err != nil {
		logger.Error("error marking item failed", "err", err)
		return
	}
	if err := q.jr.MarkDone(ctx, job.ID); err != nil {
		logger.Error("error marking job done", "err", err)
	}

	q.rollUpPostStatus(ctx, logger, item.PostID)
}

// rollUpPostStatus recomputes the aggregate post status from its items.
// One failed sibling never blocks the others; the post just reports
// partial instead of published.
func (q *Queue) rollUpPostStatus(ctx context.Context, logger *slog.Logger, postID int64) {
	statuses, err := q.pir.ListStatusesByPostID(ctx, postID)
	if err != nil {
		logger.Error("error listing item statuses", "err", err)
		return
	}

	if err := q.pr.UpdateStatus(ctx, models.RollUpStatus(statuses), postID); err != nil {
		logger.Error("error updating post status", "err", err)
	}
}

func (q *Queue) recordHistory(ctx context.Context, item *models.PostItem, job *models.PublishJob, attempt int, traceID string, pubErr error) {
	history := models.PostingHistory{
		BrandID:    job.BrandID,
		PostItemID: item.ID,
		AccountID:  item.AccountID,
		Attempt:    attempt,
		TraceID:    traceID,
	}
	if pubErr != nil {
		history.ErrorKind = string(platform.KindOf(pubErr))
		history.ErrorMessage = pubErr.Error()
	}

	if _, err := q.ph.Create(ctx, &history); err != nil {
		slog.Error("error saving posting history", "post_item_id", item.ID, "err", err)
	}
}

// HandleMediaUsageTask marks referenced media as used. Errors return to
// asynq so the task retries on its own; the publish path is long gone.
func (q *Queue) HandleMediaUsageTask(ctx context.Context, task *asynq.Task) error {
	var payload MediaUsagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := q.mu.MarkUsed(ctx, payload.PostItemID, payload.MediaURLs); err != nil {
		slog.Error("error marking media used", "post_item_id", payload.PostItemID, "err", err)
		return err
	}
	return nil
}

// retryBackoff doubles the base per completed attempt, capped.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return backoff
}
