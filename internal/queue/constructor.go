package queue

import (
	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/platform"
	"github.com/postpilot/scheduler/internal/repository"
	"github.com/postpilot/scheduler/internal/service"
)

type Queue struct {
	cfg config.Publish
	pr  repository.PostRepository
	pir repository.PostItemRepository
	jr  repository.PublishJobRepository
	ar  repository.SocialAccountRepository
	ph  repository.PostingHistoryRepository
	mu  repository.MediaUsageRepository
	cr  service.CredentialResolver
	reg platform.Registry
	enq Enqueuer
}

func NewQueue(
	cfg config.Publish,
	pr repository.PostRepository,
	pir repository.PostItemRepository,
	jr repository.PublishJobRepository,
	ar repository.SocialAccountRepository,
	ph repository.PostingHistoryRepository,
	mu repository.MediaUsageRepository,
	cr service.CredentialResolver,
	reg platform.Registry,
	enq Enqueuer) *Queue {
	return &Queue{
		cfg: cfg,
		pr:  pr,
		pir: pir,
		jr:  jr,
		ar:  ar,
		ph:  ph,
		mu:  mu,
		cr:  cr,
		reg: reg,
		enq: enq,
	}
}

const (
	TaskTypePublishItem = "publish:item"
	TaskTypeMediaUsage  = "media:mark_used"
)

type PublishItemPayload struct {
	PostItemID int64 `json:"post_item_id"`
	Attempt    int   `json:"attempt"`
}

type MediaUsagePayload struct {
	PostItemID int64    `json:"post_item_id"`
	MediaURLs  []string `json:"media_urls"`
}
