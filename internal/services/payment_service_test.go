package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vinted/internal/models"
	"vinted/internal/repositories"
	"vinted/internal/services"
	"vinted/pkg/lock"
	"vinted/pkg/payment"
	"vinted/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type payFixture struct {
	listings *repositories.MockListingRepository
	accounts *repositories.MockAccountRepository
	provider *MockPaymentProvider
	svc      *services.PaymentService
	listing  *models.Listing
	buyer    *models.Account
}

func newPayFixture(t *testing.T, opts ...services.PaymentOption) *payFixture {
	t.Helper()
	ctx := context.Background()
	f := &payFixture{
		listings: repositories.NewMockListingRepository(),
		accounts: repositories.NewMockAccountRepository(),
		provider: new(MockPaymentProvider),
	}
	f.buyer = &models.Account{Email: "buyer@example.com", Token: "buyer-token"}
	require.NoError(t, f.accounts.Create(ctx, f.buyer))
	f.listing = &models.Listing{Title: "Veste", Price: 10, Owner: "seller"}
	require.NoError(t, f.listings.Create(ctx, f.listing))

	f.svc = services.NewPaymentService(f.listings, f.accounts, f.provider, lock.NewKeyedMutex(), opts...)
	return f
}

func (f *payFixture) input(price float64) services.PayInput {
	return services.PayInput{StripeToken: "tok_visa", UserToken: "buyer-token", ListingID: f.listing.ID, Price: price}
}

func TestPaymentService_ChargeAmount(t *testing.T) {
	svc := services.NewPaymentService(nil, nil, nil, nil)
	assert.Equal(t, int64(1120), svc.ChargeAmount(10))
	assert.Equal(t, int64(2119), svc.ChargeAmount(19.99))

	svc = services.NewPaymentService(nil, nil, nil, nil, services.WithFees(services.Fees{}))
	assert.Equal(t, int64(1000), svc.ChargeAmount(10))
}

func TestPaymentService_PaySuccess(t *testing.T) {
	events := new(MockEventPublisher)
	events.On("Publish", mock.Anything, rabbitmq.ListingSold, mock.Anything).Return(nil).Once()
	f := newPayFixture(t, services.WithPaymentEvents(events))

	f.provider.On("Charge", mock.Anything, payment.ChargeRequest{
		Amount: 1120, Currency: "eur", Description: "Veste", Source: "tok_visa",
	}).Return(&payment.Charge{ID: "ch_1", Status: payment.StatusSucceeded, Amount: 1120}, nil).Once()

	charge, err := f.svc.Pay(context.Background(), f.input(10))
	require.NoError(t, err)
	assert.Equal(t, "ch_1", charge.ID)

	stored, err := f.listings.GetByID(context.Background(), f.listing.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sold)
	assert.Equal(t, f.buyer.ID, stored.SoldTo)

	f.provider.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestPaymentService_PriceMismatchNeverCharges(t *testing.T) {
	f := newPayFixture(t)

	_, err := f.svc.Pay(context.Background(), f.input(1))
	assert.Equal(t, services.KindConflict, services.KindOf(err))
	assertMessage(t, err, services.MsgPurchaseRefused)

	f.provider.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	stored, err := f.listings.GetByID(context.Background(), f.listing.ID)
	require.NoError(t, err)
	assert.False(t, stored.Sold)
}

func TestPaymentService_SoldListingNeverCharged(t *testing.T) {
	f := newPayFixture(t)
	f.provider.On("Charge", mock.Anything, mock.Anything).
		Return(&payment.Charge{ID: "ch_1", Status: payment.StatusSucceeded}, nil).Once()

	_, err := f.svc.Pay(context.Background(), f.input(10))
	require.NoError(t, err)

	_, err = f.svc.Pay(context.Background(), f.input(10))
	assert.Equal(t, services.KindConflict, services.KindOf(err))
	f.provider.AssertNumberOfCalls(t, "Charge", 1)
}

func TestPaymentService_ConcurrentBuyersChargeOnce(t *testing.T) {
	f := newPayFixture(t)
	f.provider.On("Charge", mock.Anything, mock.Anything).
		Return(&payment.Charge{ID: "ch_1", Status: payment.StatusSucceeded}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Pay(context.Background(), f.input(10))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, services.KindConflict, services.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	f.provider.AssertNumberOfCalls(t, "Charge", 1)
}

func TestPaymentService_DeclinedChargeLeavesListing(t *testing.T) {
	f := newPayFixture(t)
	f.provider.On("Charge", mock.Anything, mock.Anything).
		Return(&payment.Charge{ID: "ch_2", Status: "failed"}, nil).Once()

	charge, err := f.svc.Pay(context.Background(), f.input(10))
	require.NoError(t, err)
	assert.Equal(t, "failed", charge.Status)

	stored, err := f.listings.GetByID(context.Background(), f.listing.ID)
	require.NoError(t, err)
	assert.False(t, stored.Sold)
}

func TestPaymentService_ProviderError(t *testing.T) {
	f := newPayFixture(t)
	f.provider.On("Charge", mock.Anything, mock.Anything).
		Return(nil, payment.ErrDeclined).Once()

	_, err := f.svc.Pay(context.Background(), f.input(10))
	assert.Equal(t, services.KindUpstream, services.KindOf(err))
	assertMessage(t, err, services.MsgPaymentFailed)
	assert.True(t, errors.Is(err, payment.ErrDeclined))
}

func TestPaymentService_UnknownBuyerOrListing(t *testing.T) {
	f := newPayFixture(t)

	in := f.input(10)
	in.UserToken = "stranger"
	_, err := f.svc.Pay(context.Background(), in)
	assert.Equal(t, services.KindUnauthenticated, services.KindOf(err))

	in = f.input(10)
	in.ListingID = "missing"
	_, err = f.svc.Pay(context.Background(), in)
	assert.Equal(t, services.KindNotFound, services.KindOf(err))

	_, err = f.svc.Pay(context.Background(), services.PayInput{})
	assert.Equal(t, services.KindValidation, services.KindOf(err))

	f.provider.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}
