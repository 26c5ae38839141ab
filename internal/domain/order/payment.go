package order

import (
	"context"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// DefaultPaymentSuccessRate is the probability that a simulated payment
// goes through.
const DefaultPaymentSuccessRate = 0.8

// PaymentPolicy decides synchronously whether an order is paid. It stands
// in for a payment gateway and is never retried.
type PaymentPolicy interface {
	Charge(ctx context.Context, total decimal.Decimal) bool
}

// RandomPayment succeeds with a fixed probability per call.
type RandomPayment struct {
	rate  float64
	float func() float64
}

// NewRandomPayment returns a policy that succeeds with probability rate.
func NewRandomPayment(rate float64) *RandomPayment {
	return &RandomPayment{rate: rate, float: rand.Float64}
}

// Charge draws a uniform number in [0, 1) and succeeds when it is below the rate.
func (p *RandomPayment) Charge(context.Context, decimal.Decimal) bool {
	return p.float() < p.rate
}

// FixedPayment always returns the same outcome.
type FixedPayment bool

// Charge returns the fixed outcome.
func (f FixedPayment) Charge(context.Context, decimal.Decimal) bool {
	return bool(f)
}
