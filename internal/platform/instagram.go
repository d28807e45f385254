package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	config "github.com/postpilot/scheduler/configs"
	"github.com/postpilot/scheduler/internal/models"
	"github.com/postpilot/scheduler/internal/transfer"
)

// Container status codes returned by the Graph API.
const (
	ContainerInProgress = "IN_PROGRESS"
	ContainerFinished   = "FINISHED"
	ContainerError      = "ERROR"
)

// Graph error codes worth distinguishing.
const (
	graphCodeInvalidToken = 190
	graphCodePermission   = 10
)

// carouselChildLimit bounds how many child containers are created and
// polled at once, to stay under Graph rate limits.
const carouselChildLimit = 5

// InstagramPublisher drives the container create / poll / publish protocol
// against the Graph API. Images publish straight from CREATE; videos poll
// the container until FINISHED within a bounded attempt budget; carousels
// run both per child, concurrently, before a parent container ties them
// together. Nothing in here retries; failures come back classified.
type InstagramPublisher struct {
	cfg    config.Publish
	apiURL string
	client *http.Client
}

func NewInstagramPublisher(cfg *config.Config) *InstagramPublisher {
	return &InstagramPublisher{
		cfg:    cfg.Publish,
		apiURL: strings.TrimRight(cfg.GraphAPIURL, "/"),
		client: &http.Client{Timeout: cfg.Publish.RequestTimeout},
	}
}

func (ig *InstagramPublisher) Publish(ctx context.Context, account *Account, item *models.PostItem) (*Result, error) {
	if len(item.Media) == 0 {
		return nil, newError(KindValidation, "post item %d has no media", item.ID)
	}

	caption := buildCaption(item.Caption, item.Hashtags)

	var creationID string
	var err error

	switch {
	case item.IsCarousel():
		creationID, err = ig.createCarousel(ctx, account, item.Media, caption)
	case item.Media[0].Kind == models.MediaKindVideo:
		creationID, err = ig.createVideo(ctx, account, item.Media[0], caption)
	default:
		creationID, err = ig.createImage(ctx, account, item.Media[0], caption)
	}
	if err != nil {
		return nil, err
	}

	externalID, err := ig.publishContainer(ctx, account, creationID)
	if err != nil {
		return nil, err
	}

	return &Result{ExternalID: externalID}, nil
}

// createImage creates a single image container. Images have no processing
// phase, so the container is publishable as soon as the create call
// returns.
func (ig *InstagramPublisher) createImage(ctx context.Context, account *Account, media models.MediaRef, caption string) (string, error) {
	payload := map[string]interface{}{
		"image_url":    media.URL,
		"caption":      caption,
		"access_token": account.AccessToken,
	}
	return ig.createContainer(ctx, account, payload)
}

// createVideo creates a reel container and waits for processing to finish.
func (ig *InstagramPublisher) createVideo(ctx context.Context, account *Account, media models.MediaRef, caption string) (string, error) {
	payload := map[string]interface{}{
		"media_type":   "REELS",
		"video_url":    media.URL,
		"caption":      caption,
		"access_token": account.AccessToken,
	}
	if media.CoverURL != "" {
		payload["cover_url"] = media.CoverURL
	}
	if media.ShareToFeed {
		payload["share_to_feed"] = true
	}

	creationID, err := ig.createContainer(ctx, account, payload)
	if err != nil {
		return "", err
	}

	if err := ig.waitForContainer(ctx, account, creationID); err != nil {
		return "", err
	}
	return creationID, nil
}

// createCarousel creates one child container per media reference, waits for
// every child to become publishable, then creates the parent container
// referencing the ordered child ids. Children are processed concurrently;
// a single failed child fails the whole attempt and the parent is never
// created.
func (ig *InstagramPublisher) createCarousel(ctx context.Context, account *Account, media []models.MediaRef, caption string) (string, error) {
	childIDs := make([]string, len(media))
	childErrs := make([]error, len(media))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, carouselChildLimit)

	for i, m := range media {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, m models.MediaRef) {
			defer wg.Done()
			defer func() { <-semaphore }()
			childIDs[i], childErrs[i] = ig.createCarouselChild(ctx, account, m)
		}(i, m)
	}
	wg.Wait()

	for i, err := range childErrs {
		if err != nil {
			return "", fmt.Errorf("carousel child %d: %w", i, err)
		}
	}

	payload := map[string]interface{}{
		"media_type":   "CAROUSEL",
		"children":     childIDs,
		"caption":      caption,
		"access_token": account.AccessToken,
	}
	return ig.createContainer(ctx, account, payload)
}

func (ig *InstagramPublisher) createCarouselChild(ctx context.Context, account *Account, media models.MediaRef) (string, error) {
	payload := map[string]interface{}{
		"is_carousel_item": true,
		"access_token":     account.AccessToken,
	}

	switch media.Kind {
	case models.MediaKindImage:
		payload["image_url"] = media.URL
	case models.MediaKindVideo:
		payload["media_type"] = "REELS"
		payload["video_url"] = media.URL
	default:
		return "", newError(KindValidation, "unknown media kind %q", media.Kind)
	}

	creationID, err := ig.createContainer(ctx, account, payload)
	if err != nil {
		return "", err
	}

	// Image children are publishable immediately; video children process.
	if media.Kind == models.MediaKindVideo {
		if err := ig.waitForContainer(ctx, account, creationID); err != nil {
			return "", err
		}
	}
	return creationID, nil
}

// waitForContainer polls the container status at the configured interval
// until FINISHED, for at most MaxPollAttempts polls. ERROR is a protocol
// failure; an exhausted budget is a timeout, kept distinct so diagnostics
// can tell "the platform said no" from "the platform never said".
func (ig *InstagramPublisher) waitForContainer(ctx context.Context, account *Account, creationID string) error {
	for attempt := 1; attempt <= ig.cfg.MaxPollAttempts; attempt++ {
		status, err := ig.containerStatus(ctx, account, creationID)
		if err != nil {
			return err
		}

		switch status {
		case ContainerFinished:
			return nil
		case ContainerError:
			return newError(KindProtocol, "container %s reported processing error", creationID)
		}

		if attempt == ig.cfg.MaxPollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return wrapTransient(ctx.Err(), "polling container %s interrupted", creationID)
		case <-time.After(ig.cfg.PollInterval):
		}
	}

	return newError(KindTimeout, "container %s not finished after %d polls", creationID, ig.cfg.MaxPollAttempts)
}

func (ig *InstagramPublisher) containerStatus(ctx context.Context, account *Account, creationID string) (string, error) {
	url := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", ig.apiURL, creationID, account.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", wrapTransient(err, "error creating status request")
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", wrapTransient(err, "status request failed for container %s", creationID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransient(err, "error reading status response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyGraphError(resp.StatusCode, body)
	}

	var status transfer.GraphContainerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return "", newError(KindProtocol, "error parsing status response: %v", err)
	}
	return status.StatusCode, nil
}

// createContainer posts to the account's media endpoint and returns the
// creation id.
func (ig *InstagramPublisher) createContainer(ctx context.Context, account *Account, payload map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/%s/media", ig.apiURL, account.BusinessAccountID)

	creation, err := ig.doPost(ctx, url, payload)
	if err != nil {
		return "", err
	}
	if creation.ID == "" {
		return "", newError(KindProtocol, "no creation id returned from Instagram")
	}
	return creation.ID, nil
}

// publishContainer exchanges a creation id for the final external post id.
func (ig *InstagramPublisher) publishContainer(ctx context.Context, account *Account, creationID string) (string, error) {
	url := fmt.Sprintf("%s/%s/media_publish", ig.apiURL, account.BusinessAccountID)
	payload := map[string]interface{}{
		"creation_id":  creationID,
		"access_token": account.AccessToken,
	}

	creation, err := ig.doPost(ctx, url, payload)
	if err != nil {
		return "", err
	}
	if creation.ID == "" {
		return "", newError(KindProtocol, "no post id returned from media_publish")
	}

	slog.Info("published instagram container", "creation_id", creationID, "post_id", creation.ID)
	return creation.ID, nil
}

func (ig *InstagramPublisher) doPost(ctx context.Context, url string, payload map[string]interface{}) (*transfer.GraphCreation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(KindValidation, "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, wrapTransient(err, "error creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		return nil, wrapTransient(err, "HTTP request error")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransient(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGraphError(resp.StatusCode, respBody)
	}

	var creation transfer.GraphCreation
	if err := json.Unmarshal(respBody, &creation); err != nil {
		return nil, newError(KindProtocol, "error parsing response: %v", err)
	}
	return &creation, nil
}

// classifyGraphError maps a non-200 Graph response onto the taxonomy.
// Expired or invalid tokens are auth failures the user has to fix;
// permission and business-account problems are permanent; rate limiting,
// 5xx and anything the platform itself flags transient may be retried.
// An envelope whose code says nothing either way falls back to the HTTP
// status, so a 5xx stays retryable no matter what body it came with.
func classifyGraphError(statusCode int, body []byte) *Error {
	retryableStatus := statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError

	var graphErr transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &graphErr); err == nil && graphErr.Error.Message != "" {
		e := graphErr.Error

		kind := KindProtocol
		switch {
		case e.Code == graphCodeInvalidToken:
			kind = KindAuth
		case e.Code == graphCodePermission, e.Code >= 200 && e.Code <= 299:
			kind = KindProtocol
		case e.IsTransient || retryableStatus:
			kind = KindTransient
		}

		return &Error{Kind: kind, Code: e.Code, Message: e.Message}
	}

	if retryableStatus {
		return newError(KindTransient, "unexpected status code from Instagram: %d", statusCode)
	}
	return newError(KindProtocol, "unexpected status code from Instagram: %d", statusCode)
}

func buildCaption(caption string, hashtags []string) string {
	if len(hashtags) == 0 {
		return caption
	}

	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}

	if caption == "" {
		return strings.Join(tags, " ")
	}
	return caption + "\n\n" + strings.Join(tags, " ")
}
