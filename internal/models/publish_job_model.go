package models

import "time"

// PublishJob is the durable, time-triggered unit of work behind one
// PostItem. The row is authoritative; the queue task is only delivery.
type PublishJob struct {
	ID          int64     `db:"id" json:"id"`
	PostItemID  int64     `db:"post_item_id" json:"post_item_id"`
	BrandID     int64     `db:"brand_id" json:"brand_id"`
	Status      string    `db:"status" json:"status"` // pending, done
	RunAt       time.Time `db:"run_at" json:"run_at"`
	Attempts    int       `db:"attempts" json:"attempts"`
	MaxAttempts int       `db:"max_attempts" json:"max_attempts"`
	NextRunAt   time.Time `db:"next_run_at" json:"next_run_at"`
	LastError   string    `db:"last_error" json:"last_error"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const (
	JobStatusPending = "pending"
	JobStatusDone    = "done"
)
