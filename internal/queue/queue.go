package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the slice of *asynq.Client the queue needs, kept as an
// interface so the worker path can be exercised without Redis.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePublishItem schedules one publish job for delivery after delay.
// MaxRetry is zero on purpose: retry policy belongs to the worker, which
// classifies the failure and requeues with its own backoff. The task id is
// derived from the item and attempt so a sweep re-enqueue of a still-queued
// job dedupes instead of doubling up.
func EnqueuePublishItem(enq Enqueuer, payload PublishItemPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishItem, taskPayload)

	_, err = enq.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
		asynq.TaskID(fmt.Sprintf("publish-item-%d-a%d", payload.PostItemID, payload.Attempt)),
	)
	if err != nil {
		return err
	}

	log.Printf("Publish task scheduled: %+v", payload)
	return nil
}

// EnqueueMediaUsage fires the detached media-usage marker. The publish
// path never waits on it; asynq supervises its retries separately.
func EnqueueMediaUsage(enq Enqueuer, payload MediaUsagePayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = enq.Enqueue(asynq.NewTask(TaskTypeMediaUsage, taskPayload))
	return err
}
