package services_test

import (
	"context"

	"vinted/internal/models"
	"vinted/internal/query"
	"vinted/pkg/payment"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of repositories.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *models.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByToken(ctx context.Context, token string) (*models.Account, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateLoginState(ctx context.Context, acct *models.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

// MockListingRepository is a mock implementation of repositories.ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Find(ctx context.Context, q *query.Query) ([]models.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingRepository) Count(ctx context.Context, filter []query.Criterion) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) MarkSold(ctx context.Context, id, buyerID string, price float64) error {
	args := m.Called(ctx, id, buyerID, price)
	return args.Error(0)
}

// MockImageHost is a mock implementation of services.ImageHost
type MockImageHost struct {
	mock.Mock
}

func (m *MockImageHost) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	args := m.Called(ctx, data, contentType, folder)
	return args.String(0), args.Error(1)
}

// MockPaymentProvider is a mock implementation of services.PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Charge), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}
