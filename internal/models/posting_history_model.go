package models

import "time"

// PostingHistory is one row per publish attempt, success or not.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	BrandID      int64     `db:"brand_id" json:"brand_id"`
	PostItemID   int64     `db:"post_item_id" json:"post_item_id"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	Attempt      int       `db:"attempt" json:"attempt"`
	TraceID      string    `db:"trace_id" json:"trace_id"`
	ErrorKind    string    `db:"error_kind" json:"error_kind"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
