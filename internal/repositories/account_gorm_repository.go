package repositories

import (
	"context"
	"errors"
	"fmt"

	"vinted/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMAccountRepository is a GORM implementation of AccountRepository.
type GORMAccountRepository struct {
	db *gorm.DB
}

// NewGORMAccountRepository creates a new instance of GORMAccountRepository.
func NewGORMAccountRepository(db *gorm.DB) *GORMAccountRepository {
	return &GORMAccountRepository{
		db: db,
	}
}

// Create creates a new account in the database.
func (r *GORMAccountRepository) Create(ctx context.Context, acct *models.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create account: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID from the database.
func (r *GORMAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by its email from the database.
func (r *GORMAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByToken retrieves the account owning a session token.
func (r *GORMAccountRepository) GetByToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("account by token: %w", ErrNotFound)
	}
	return r.first(ctx, "token = ?", token)
}

// UpdateLoginState writes the lockout counters of an account.
func (r *GORMAccountRepository) UpdateLoginState(ctx context.Context, acct *models.Account) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", acct.ID).
		Updates(map[string]any{
			"failed_login_count": acct.FailedLoginCount,
			"lock_until":         acct.LockUntil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update login state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account with ID %s not found for update: %w", acct.ID, ErrNotFound)
	}
	return nil
}

func (r *GORMAccountRepository) first(ctx context.Context, cond string, arg string) (*models.Account, error) {
	var acct models.Account
	if err := r.db.WithContext(ctx).First(&acct, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acct, nil
}
