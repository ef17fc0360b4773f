package sessioncache

import (
	"context"
	"time"

	"storefront-api/internal/domain"
)

// Entry binds an access token to the user it resolved to, with an expiry
// after which the provider must be asked again.
type Entry struct {
	Token     string
	User      domain.SessionUser
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repository is a server-side lookup cache for token-to-user resolutions,
// so repeated session checks do not hammer the hosted provider.
type Repository interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, token string) (*Entry, error)
	Delete(ctx context.Context, token string) error
}
