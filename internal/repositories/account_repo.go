package repositories

import (
	"context"
	"errors"

	"vinted/internal/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrListingUnavailable = errors.New("listing is sold or its price changed")
	ErrUnboundedQuery     = errors.New("query has no limit")
)

// AccountRepository defines the interface for account data access.
type AccountRepository interface {
	Create(ctx context.Context, acct *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByToken(ctx context.Context, token string) (*models.Account, error)
	// UpdateLoginState persists FailedLoginCount and LockUntil.
	UpdateLoginState(ctx context.Context, acct *models.Account) error
}
