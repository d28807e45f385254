package models

import "time"

type Post struct {
	ID            int64     `db:"id" json:"id"`
	BrandID       int64     `db:"brand_id" json:"brand_id"`
	Status        string    `db:"status" json:"status"` // scheduled, partial, published, failed, cancelled
	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type PostItem struct {
	ID             int64      `db:"id" json:"id"`
	PostID         int64      `db:"post_id" json:"post_id"`
	AccountID      int64      `db:"account_id" json:"account_id"`
	Platform       string     `db:"platform" json:"platform"`
	Caption        string     `db:"caption" json:"caption"`
	Hashtags       []string   `db:"hashtags" json:"hashtags"`
	Media          []MediaRef `db:"media" json:"media"`
	Status         string     `db:"status" json:"status"` // scheduled, publishing, published, failed
	ExternalPostID string     `db:"external_post_id" json:"external_post_id"`
	LastError      string     `db:"last_error" json:"last_error"`
	Attempts       int        `db:"attempts" json:"attempts"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// MediaRef points at already-hosted media. Exactly one kind per reference;
// cover and share-to-feed only apply to videos.
type MediaRef struct {
	Kind        string `db:"kind" json:"kind"` // image, video
	URL         string `db:"url" json:"url"`
	CoverURL    string `db:"cover_url" json:"cover_url,omitempty"`
	ShareToFeed bool   `db:"share_to_feed" json:"share_to_feed,omitempty"`
}

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

const (
	PostStatusScheduled = "scheduled"
	PostStatusPartial   = "partial"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
	PostStatusCancelled = "cancelled"
)

const (
	ItemStatusScheduled  = "scheduled"
	ItemStatusPublishing = "publishing"
	ItemStatusPublished  = "published"
	ItemStatusFailed     = "failed"
)

// IsCarousel reports whether the item publishes as a carousel.
func (pi *PostItem) IsCarousel() bool {
	return len(pi.Media) > 1
}

// RollUpStatus derives the aggregate post status from its item statuses:
// published only when every item published, failed when every item failed,
// partial once any item failed and none are still pending, scheduled
// otherwise.
func RollUpStatus(itemStatuses []string) string {
	if len(itemStatuses) == 0 {
		return PostStatusScheduled
	}

	published, failed, pending := 0, 0, 0
	for _, s := range itemStatuses {
		switch s {
		case ItemStatusPublished:
			published++
		case ItemStatusFailed:
			failed++
		default:
			pending++
		}
	}

	switch {
	case published == len(itemStatuses):
		return PostStatusPublished
	case failed == len(itemStatuses):
		return PostStatusFailed
	case failed > 0 && pending == 0:
		return PostStatusPartial
	default:
		return PostStatusScheduled
	}
}
