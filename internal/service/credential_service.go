package service

import (
	"context"
	"time"

	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/pkg/utils"
)

// CredentialResolver turns a stored account into something a Publisher
// can authenticate with. A missing, disconnected or expired credential is
// an auth failure before any platform call is made.
type CredentialResolver interface {
	Resolve(ctx context.Context, acc *models.SocialAccount) (*platform.Account, error)
}

type credentialService struct {
	cfg config.Config
}

func NewCredentialService(cfg config.Config) CredentialResolver {
	return &credentialService{cfg: cfg}
}

func (s *credentialService) Resolve(ctx context.Context, acc *models.SocialAccount) (*platform.Account, error) {
	if acc.AccountStatus != models.AccountStatusActive {
		return nil, &platform.Error{Kind: platform.KindAuth, Message: "account is disconnected"}
	}
	if !acc.TokenExpiresAt.IsZero() && acc.TokenExpiresAt.Before(time.Now()) {
		return nil, &platform.Error{Kind: platform.KindAuth, Message: "access token expired, re-authentication required"}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &platform.Error{Kind: platform.KindAuth, Message: "unable to decrypt access token", Err: err}
	}

	return &platform.Account{
		BusinessAccountID: acc.AccountID,
		AccessToken:       accessToken,
	}, nil
}
