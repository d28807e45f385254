package platform

import (
	"context"

	"github.com/postpilot/scheduler/internal/models"
)

// Account carries what a Publisher needs to act on behalf of a connected
// account: the platform business account id and an already-decrypted
// access token. Credential resolution happens before the adapter is
// called.
type Account struct {
	BusinessAccountID string
	AccessToken       string
}

// Result is the only thing a successful publish produces.
type Result struct {
	ExternalID string
}

// Publisher runs one platform's publish protocol for a single item. It
// never touches persistence and never retries; it classifies failures into
// *Error and returns them for the worker to act on.
type Publisher interface {
	Publish(ctx context.Context, account *Account, item *models.PostItem) (*Result, error)
}

// Registry maps a platform tag to its Publisher.
type Registry map[string]Publisher

func (r Registry) Lookup(platformTag string) (Publisher, error) {
	p, ok := r[platformTag]
	if !ok {
		return nil, newError(KindProtocol, "unknown platform %q", platformTag)
	}
	return p, nil
}
