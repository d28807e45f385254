package models

import "time"

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	BrandID         int64     `db:"brand_id" json:"brand_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"` // platform business account id
	AccountUsername string    `db:"account_username" json:"account_username"`
	AccessToken     string    `db:"access_token" json:"-"` // AES-GCM encrypted
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string    `db:"account_status" json:"account_status"` // active, disconnected
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

const (
	AccountStatusActive       = "active"
	AccountStatusDisconnected = "disconnected"
)

const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformX         = "x"
	PlatformLinkedin  = "linkedin"
	PlatformYoutube   = "youtube"
	PlatformTiktok    = "tiktok"
)
