package payment

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// ErrAmbiguousOutcome marks a gateway call whose result is unknown (e.g. a
// timeout after submission). The charge may have been captured; callers must
// not treat this as a plain decline.
var ErrAmbiguousOutcome = errors.New("payment outcome unknown")

type Request struct {
	AmountMinor    int64
	Currency       string
	Token          string
	IdempotencyKey string
}

type Charge struct {
	ID             string
	CapturedAmount int64
}

type Gateway interface {
	Charge(ctx context.Context, req Request) (*Charge, error)
}

type StripeGateway struct {
	sc *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{sc: client.New(secretKey, nil)}
}

func (g *StripeGateway) Charge(ctx context.Context, req Request) (*Charge, error) {
	params := &stripe.ChargeParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(req.IdempotencyKey),
		},
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
	}
	if err := params.SetSource(req.Token); err != nil {
		return nil, fmt.Errorf("stripe: invalid source token: %w", err)
	}

	ch, err := g.sc.Charges.New(params)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("stripe: %v: %w", err, ErrAmbiguousOutcome)
		}
		return nil, fmt.Errorf("stripe: charge failed: %w", err)
	}

	return &Charge{ID: ch.ID, CapturedAmount: ch.Amount}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
