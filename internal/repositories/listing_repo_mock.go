package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vinted/internal/models"
	"vinted/internal/query"

	"github.com/google/uuid"
)

// MockListingRepository is an in-memory implementation of ListingRepository.
type MockListingRepository struct {
	listings map[string]models.Listing
	order    []string // insertion order, the tie-breaker for equal sort keys
	mu       sync.RWMutex
}

// NewMockListingRepository creates a new instance of MockListingRepository.
func NewMockListingRepository() *MockListingRepository {
	return &MockListingRepository{
		listings: make(map[string]models.Listing),
	}
}

// Find filters, sorts, pages and projects the stored listings.
func (r *MockListingRepository) Find(_ context.Context, q *query.Query) ([]models.Listing, error) {
	if q == nil || q.Limit <= 0 {
		return nil, ErrUnboundedQuery
	}

	r.mu.RLock()
	matched := make([]models.Listing, 0, len(r.order))
	for _, id := range r.order {
		l := r.listings[id]
		if query.Match(q.Filter, l.Value) {
			matched = append(matched, l)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return query.Less(q.Sort, matched[i].Value, matched[j].Value)
	})

	if q.Skip >= len(matched) {
		return []models.Listing{}, nil
	}
	end := q.Skip + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]models.Listing, 0, end-q.Skip)
	for _, l := range matched[q.Skip:end] {
		page = append(page, project(l, q.Projection))
	}
	return page, nil
}

// Count returns the number of listings matching filter.
func (r *MockListingRepository) Count(_ context.Context, filter []query.Criterion) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, l := range r.listings {
		if query.Match(filter, l.Value) {
			n++
		}
	}
	return n, nil
}

// GetByID returns a listing by its ID.
func (r *MockListingRepository) GetByID(_ context.Context, id string) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing with ID %s: %w", id, ErrNotFound)
	}
	return &l, nil
}

// Create adds a new listing.
func (r *MockListingRepository) Create(_ context.Context, listing *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt
	if _, exists := r.listings[listing.ID]; !exists {
		r.order = append(r.order, listing.ID)
	}
	r.listings[listing.ID] = *listing
	return nil
}

// MarkSold records the sale of an unsold listing at the expected price.
func (r *MockListingRepository) MarkSold(_ context.Context, id, buyerID string, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return fmt.Errorf("listing with ID %s: %w", id, ErrNotFound)
	}
	if l.Sold || l.Price != price {
		return fmt.Errorf("listing with ID %s: %w", id, ErrListingUnavailable)
	}
	l.Sold = true
	l.SoldTo = buyerID
	l.Version++
	l.UpdatedAt = time.Now()
	r.listings[id] = l
	return nil
}

// project zeroes the fields a projection leaves out.
func project(l models.Listing, p query.Projection) models.Listing {
	out := models.Listing{ID: l.ID}
	for _, f := range p.Fields {
		switch f.Name {
		case "product_name":
			out.Title = l.Title
		case "product_description":
			out.Description = l.Description
		case "product_price":
			out.Price = l.Price
		case "product_details":
			out.Details = l.Details
		case "product_image":
			out.Images = l.Images
		case "owner":
			out.Owner = l.Owner
		case "sold":
			out.Sold = l.Sold
		case "sold_to":
			out.SoldTo = l.SoldTo
		}
	}
	return out
}
