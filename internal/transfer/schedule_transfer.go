package transfer

import "github.com/golang-jwt/jwt/v5"

// ScheduleRequest is the boundary DTO for scheduling a post. Validation
// tags catch shape problems; time and carousel semantics are checked in
// the schedule service.
type ScheduleRequest struct {
	ScheduledTime string         `json:"scheduled_time" validate:"required"`
	Items         []ScheduleItem `json:"items" validate:"required,min=1,dive"`
}

// ScheduleItem is one (account, content) pairing.
type ScheduleItem struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Caption   string          `json:"caption"`
	Hashtags  []string        `json:"hashtags"`
	Media     []ScheduleMedia `json:"media" validate:"required,min=1,max=10,dive"`
}

// ScheduleMedia references one already-hosted asset.
type ScheduleMedia struct {
	Kind        string `json:"kind" validate:"required,oneof=image video"`
	URL         string `json:"url" validate:"required,url"`
	CoverURL    string `json:"cover_url" validate:"omitempty,url"`
	ShareToFeed bool   `json:"share_to_feed"`
}

// ScheduleResult reports what the scheduler created.
type ScheduleResult struct {
	PostID      int64   `json:"post_id"`
	PostItemIDs []int64 `json:"post_item_ids"`
}

type CustomClaims struct {
	BrandID string `json:"brand_id"`
	jwt.RegisteredClaims
}
