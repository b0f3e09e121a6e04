package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe charges cards through the Stripe Charges API.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api}
}

// Charge creates a charge against a tokenized card source.
func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	if err := params.SetSource(req.Source); err != nil {
		return nil, fmt.Errorf("stripe source: %w", err)
	}
	params.Context = ctx

	ch, err := s.api.Charges.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return nil, fmt.Errorf("%w: %s", ErrDeclined, serr.Msg)
		}
		return nil, fmt.Errorf("stripe charge: %w", err)
	}

	return &Charge{
		ID:          ch.ID,
		Status:      string(ch.Status),
		Amount:      ch.Amount,
		Currency:    string(ch.Currency),
		Description: ch.Description,
		Created:     ch.Created,
		Paid:        ch.Paid,
	}, nil
}
