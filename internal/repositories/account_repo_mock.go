package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vinted/internal/models"

	"github.com/google/uuid"
)

// MockAccountRepository is an in-memory implementation of AccountRepository.
type MockAccountRepository struct {
	accounts map[string]models.Account
	mu       sync.RWMutex
}

// NewMockAccountRepository creates a new instance of MockAccountRepository.
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]models.Account),
	}
}

// Create adds a new account.
func (r *MockAccountRepository) Create(_ context.Context, acct *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == acct.Email {
			return fmt.Errorf("failed to create account: %w", ErrDuplicateEmail)
		}
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	r.accounts[acct.ID] = *acct
	return nil
}

// GetByID returns an account by its ID.
func (r *MockAccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	return &acct, nil
}

// GetByEmail returns an account by its email.
func (r *MockAccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email })
}

// GetByToken returns the account owning a session token.
func (r *MockAccountRepository) GetByToken(_ context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("account by token: %w", ErrNotFound)
	}
	return r.find(func(a *models.Account) bool { return a.Token == token })
}

// UpdateLoginState stores the lockout counters of an account.
func (r *MockAccountRepository) UpdateLoginState(_ context.Context, acct *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[acct.ID]
	if !ok {
		return fmt.Errorf("account with ID %s not found for update: %w", acct.ID, ErrNotFound)
	}
	stored.FailedLoginCount = acct.FailedLoginCount
	stored.LockUntil = acct.LockUntil
	stored.UpdatedAt = time.Now()
	r.accounts[acct.ID] = stored
	return nil
}

func (r *MockAccountRepository) find(match func(*models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(&a) {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}
