package repositories

import (
	"context"

	"vinted/internal/models"
	"vinted/internal/query"
)

// ListingRepository defines the interface for listing data access.
type ListingRepository interface {
	// Find executes a compiled query. Queries without a positive limit are
	// refused with ErrUnboundedQuery.
	Find(ctx context.Context, q *query.Query) ([]models.Listing, error)
	Count(ctx context.Context, filter []query.Criterion) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	// MarkSold flips an unsold listing still priced at price to sold. It fails
	// with ErrListingUnavailable when that guard does not hold.
	MarkSold(ctx context.Context, id, buyerID string, price float64) error
}
