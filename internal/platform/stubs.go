package platform

import (
	"context"

	"github.com/postpilot/scheduler/internal/models"
)

// NotImplementedPublisher stands in for platforms whose protocol is not
// wired up yet. The error is permanent so the worker fails the item
// instead of retrying.
type NotImplementedPublisher struct {
	Platform string
}

func (p *NotImplementedPublisher) Publish(ctx context.Context, account *Account, item *models.PostItem) (*Result, error) {
	return nil, newError(KindProtocol, "publishing to %s is not implemented", p.Platform)
}

// NewRegistry wires every known platform tag to its Publisher.
func NewRegistry(ig *InstagramPublisher) Registry {
	return Registry{
		models.PlatformInstagram: ig,
		models.PlatformFacebook:  &NotImplementedPublisher{Platform: models.PlatformFacebook},
		models.PlatformX:         &NotImplementedPublisher{Platform: models.PlatformX},
		models.PlatformLinkedin:  &NotImplementedPublisher{Platform: models.PlatformLinkedin},
		models.PlatformYoutube:   &NotImplementedPublisher{Platform: models.PlatformYoutube},
		models.PlatformTiktok:    &NotImplementedPublisher{Platform: models.PlatformTiktok},
	}
}
