package services

import (
	"context"
	"errors"
	"log"
	"time"

	"vinted/internal/models"
	"vinted/internal/repositories"
	"vinted/pkg/payment"
	"vinted/pkg/rabbitmq"
)

const (
	MsgPurchaseRefused = "Purchase can't be done"
	MsgPaymentFailed   = "Something went wrong"

	DefaultCurrency      = "eur"
	DefaultFeeProtection = 0.4
	DefaultFeeShipping   = 0.8
)

// PaymentProvider charges a card source.
type PaymentProvider interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error)
}

// Locker serializes work on a key. The returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// PayInput is a payment request: the card source, the buyer's session token
// and the listing as the buyer saw it.
type PayInput struct {
	StripeToken string
	UserToken   string
	ListingID   string
	Price       float64
}

// Fees are added to the listing price before charging.
type Fees struct {
	Protection float64
	Shipping   float64
}

// PaymentService captures payments and marks listings sold.
type PaymentService struct {
	listings repositories.ListingRepository
	accounts repositories.AccountRepository
	provider PaymentProvider
	locker   Locker
	events   EventPublisher
	currency string
	fees     Fees
	timeout  time.Duration
}

// PaymentOption configures a PaymentService.
type PaymentOption func(*PaymentService)

func WithPaymentEvents(p EventPublisher) PaymentOption {
	return func(s *PaymentService) { s.events = p }
}

func WithCurrency(currency string) PaymentOption {
	return func(s *PaymentService) {
		if currency != "" {
			s.currency = currency
		}
	}
}

func WithFees(f Fees) PaymentOption {
	return func(s *PaymentService) { s.fees = f }
}

func WithPaymentTimeout(d time.Duration) PaymentOption {
	return func(s *PaymentService) { s.timeout = d }
}

// NewPaymentService creates a new PaymentService. A nil locker falls back to
// relying on the conditional store update alone.
func NewPaymentService(listings repositories.ListingRepository, accounts repositories.AccountRepository, provider PaymentProvider, locker Locker, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{
		listings: listings,
		accounts: accounts,
		provider: provider,
		locker:   locker,
		currency: DefaultCurrency,
		fees:     Fees{Protection: DefaultFeeProtection, Shipping: DefaultFeeShipping},
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChargeAmount returns the amount charged for price, in minor units.
func (s *PaymentService) ChargeAmount(price float64) int64 {
	return payment.MinorUnits(price, s.fees.Protection, s.fees.Shipping)
}

// Pay re-reads the listing under a per-listing lock, refuses it when sold or
// when the submitted price differs, charges the provider and then marks the
// listing sold to the buyer. A declined or pending charge is returned as is
// and leaves the listing untouched.
func (s *PaymentService) Pay(ctx context.Context, in PayInput) (*payment.Charge, error) {
	if in.StripeToken == "" || in.UserToken == "" || in.ListingID == "" {
		return nil, newError(KindValidation, MsgPurchaseRefused, nil)
	}

	var buyer *models.Account
	err := bounded(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		buyer, err = s.accounts.GetByToken(ctx, in.UserToken)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindUnauthenticated, MsgUnauthorized, err)
		}
		return nil, newError(KindUpstream, MsgPaymentFailed, err)
	}

	if s.locker != nil {
		var unlock func()
		err := bounded(ctx, s.timeout, func(ctx context.Context) error {
			var err error
			unlock, err = s.locker.Acquire(ctx, "listing:"+in.ListingID)
			return err
		})
		if err != nil {
			return nil, newError(KindUpstream, MsgPaymentFailed, err)
		}
		defer unlock()
	}

	var listing *models.Listing
	err = bounded(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		listing, err = s.listings.GetByID(ctx, in.ListingID)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindNotFound, MsgOfferNotFound, err)
		}
		return nil, newError(KindUpstream, MsgPaymentFailed, err)
	}
	if listing.Sold || listing.Price != in.Price {
		log.Printf("Refused payment for listing %s: sold=%t stored price %.2f, submitted %.2f",
			listing.ID, listing.Sold, listing.Price, in.Price)
		return nil, newError(KindConflict, MsgPurchaseRefused, nil)
	}

	var charge *payment.Charge
	err = bounded(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		charge, err = s.provider.Charge(ctx, payment.ChargeRequest{
			Amount:      s.ChargeAmount(listing.Price),
			Currency:    s.currency,
			Description: listing.Title,
			Source:      in.StripeToken,
		})
		return err
	})
	if err != nil {
		return nil, newError(KindUpstream, MsgPaymentFailed, err)
	}
	if !charge.Succeeded() {
		return charge, nil
	}

	// The card has been charged; record the sale even if the client went away.
	err = bounded(context.WithoutCancel(ctx), s.timeout, func(ctx context.Context) error {
		return s.listings.MarkSold(ctx, listing.ID, buyer.ID, listing.Price)
	})
	if err != nil {
		log.Printf("Charge %s captured but listing %s not marked sold: %v", charge.ID, listing.ID, err)
		return nil, newError(KindUpstream, MsgPaymentFailed, err)
	}

	log.Printf("Listing %s sold to %s (charge %s)", listing.ID, buyer.ID, charge.ID)
	publishEvent(ctx, s.events, rabbitmq.ListingSold, map[string]any{
		"listingID": listing.ID,
		"buyer":     buyer.ID,
		"chargeID":  charge.ID,
		"amount":    charge.Amount,
	})
	return charge, nil
}
