// Package payment captures card payments for sold listings.
package payment

import (
	"errors"
	"math"
)

const StatusSucceeded = "succeeded"

var ErrDeclined = errors.New("payment declined")

// ChargeRequest describes a one-off charge. Amount is in minor currency units.
type ChargeRequest struct {
	Amount      int64
	Currency    string
	Description string
	Source      string
}

// Charge is the provider's view of a completed charge.
type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Created     int64  `json:"created"`
	Paid        bool   `json:"paid"`
}

// Succeeded reports whether the charge went through.
func (c *Charge) Succeeded() bool {
	return c != nil && c.Status == StatusSucceeded
}

// MinorUnits adds fees to price and converts the total to cents.
func MinorUnits(price float64, fees ...float64) int64 {
	total := price
	for _, f := range fees {
		total += f
	}
	return int64(math.Round(total * 100))
}
