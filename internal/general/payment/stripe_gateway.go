package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"isuride/internal/ports"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeGateway implements the gateway contract with PaymentIntents. The rider's
// payment token is used as the Stripe customer id.
type StripeGateway struct {
	intents  *paymentintent.Client
	currency string
}

// NewStripeGateway returns a gateway talking to the Stripe API. Each call is
// bounded by timeout and never retried by the client: the settler owns retries.
func NewStripeGateway(key, currency string, timeout time.Duration) ports.PaymentGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return newStripeGateway(key, currency, stripe.APIURL, &http.Client{Timeout: timeout})
}

func newStripeGateway(key, currency, url string, client *http.Client) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        client,
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	if currency == "" {
		currency = string(stripe.CurrencyJPY)
	}
	return &StripeGateway{
		intents:  &paymentintent.Client{B: backend, Key: key},
		currency: currency,
	}
}

func (gateway *StripeGateway) PostPayment(ctx context.Context, token string, amount int) (bool, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(gateway.currency),
		Customer: stripe.String(token),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx

	pi, err := gateway.intents.New(params)
	if err != nil {
		// a 4xx is a definite rejection; transport and 5xx failures may still have charged
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusBadRequest && stripeErr.HTTPStatusCode < http.StatusInternalServerError {
			return false, fmt.Errorf("create payment intent: %w", err)
		}
		return false, nil
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (gateway *StripeGateway) ListPayments(ctx context.Context, token string) ([]ports.Payment, error) {
	params := &stripe.PaymentIntentListParams{Customer: stripe.String(token)}
	params.Context = ctx

	var payments []ports.Payment
	iter := gateway.intents.List(params)
	for iter.Next() {
		pi := iter.PaymentIntent()
		payments = append(payments, ports.Payment{Amount: int(pi.Amount), Status: string(pi.Status)})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}

	// stripe lists newest first
	for i, j := 0, len(payments)-1; i < j; i, j = i+1, j-1 {
		payments[i], payments[j] = payments[j], payments[i]
	}
	return payments, nil
}
