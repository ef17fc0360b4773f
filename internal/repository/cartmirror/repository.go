package cartmirror

import (
	"context"

	"storefront-api/internal/domain"
)

// Repository persists per-user cart snapshots. The in-memory cart store is
// authoritative for a session; the mirror only lets an authenticated user
// pick their cart up elsewhere.
type Repository interface {
	Replace(ctx context.Context, userID string, lines []domain.CartLine) error
	Get(ctx context.Context, userID string) ([]domain.CartLine, error)
	Delete(ctx context.Context, userID string) error
}
