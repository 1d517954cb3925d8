package repository

import (
	"context"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
)

// SnapshotRepository keeps the final state of finished team carts after the
// live document has left the store.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, cart domain.TeamCart) error
	GetSnapshot(ctx context.Context, cartID string) (*domain.TeamCart, error)
	CreateIndexes(ctx context.Context) error
}
