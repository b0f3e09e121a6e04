package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vinted/internal/models"
	"vinted/internal/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMListingRepository is a GORM implementation of ListingRepository.
type GORMListingRepository struct {
	db *gorm.DB
}

// NewGORMListingRepository creates a new instance of GORMListingRepository.
func NewGORMListingRepository(db *gorm.DB) *GORMListingRepository {
	return &GORMListingRepository{
		db: db,
	}
}

// Find runs a compiled query. Column names come from the query schema, never
// from the request.
func (r *GORMListingRepository) Find(ctx context.Context, q *query.Query) ([]models.Listing, error) {
	if q == nil || q.Limit <= 0 {
		return nil, ErrUnboundedQuery
	}

	tx := where(r.db.WithContext(ctx).Model(&models.Listing{}), q.Filter)
	for _, o := range q.Sort {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field.Column}, Desc: o.Desc})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}})

	if q.Projection.Explicit {
		cols := make([]string, 0, len(q.Projection.Fields))
		for _, f := range q.Projection.Fields {
			cols = append(cols, f.Column)
		}
		tx = tx.Select(cols)
	} else {
		for _, f := range q.Projection.Hidden {
			tx = tx.Omit(f.Column)
		}
	}

	listings := []models.Listing{}
	if err := tx.Offset(q.Skip).Limit(q.Limit).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to find listings: %w", err)
	}
	return listings, nil
}

// Count returns the number of listings matching filter.
func (r *GORMListingRepository) Count(ctx context.Context, filter []query.Criterion) (int64, error) {
	var n int64
	if err := where(r.db.WithContext(ctx).Model(&models.Listing{}), filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// GetByID retrieves a single listing by its ID from the database.
func (r *GORMListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get listing by ID %s: %w", id, err)
	}
	return &listing, nil
}

// Create creates a new listing in the database.
func (r *GORMListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// MarkSold updates the listing only while it is unsold and still priced at
// price, so two concurrent sales cannot both succeed.
func (r *GORMListingRepository) MarkSold(ctx context.Context, id, buyerID string, price float64) error {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND sold = ? AND product_price = ?", id, false, price).
		Updates(map[string]any{
			"sold":       true,
			"sold_to":    buyerID,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark listing %s sold: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("listing with ID %s: %w", id, ErrListingUnavailable)
	}
	return nil
}

func where(tx *gorm.DB, filter []query.Criterion) *gorm.DB {
	for _, c := range filter {
		col := clause.Column{Name: c.Field.Column}
		switch c.Op {
		case query.Eq:
			tx = tx.Where(clause.Eq{Column: col, Value: c.Value})
		case query.Gt:
			tx = tx.Where(clause.Gt{Column: col, Value: c.Value})
		case query.Gte:
			tx = tx.Where(clause.Gte{Column: col, Value: c.Value})
		case query.Lt:
			tx = tx.Where(clause.Lt{Column: col, Value: c.Value})
		case query.Lte:
			tx = tx.Where(clause.Lte{Column: col, Value: c.Value})
		}
	}
	return tx
}
