// Package settlement charges a completed ride through the payment gateway and
// reconciles ambiguous gateway answers against the rider's ride history.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/general/logger"
	"isuride/internal/general/metrics"
	"isuride/internal/ports"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 100 * time.Millisecond
)

// ErrPaymentMismatch means the gateway's payment list cannot be reconciled with
// the rider's rides after an ambiguous POST.
var ErrPaymentMismatch = errors.New("payment count does not match ride count")

// Charge is one settlement request.
type Charge struct {
	RideID string
	Token  string
	Amount int
	// RideCount is the rider's total number of rides, this one included.
	RideCount int
}

// Settler runs the settlement protocol with a bounded fixed-delay retry.
type Settler struct {
	logger     *logger.Logger
	gateway    ports.PaymentGateway
	maxRetries int
	retryDelay time.Duration
}

// NewSettler wires a Settler. A negative maxRetries disables retries.
func NewSettler(logger *logger.Logger, gateway ports.PaymentGateway, maxRetries int, retryDelay time.Duration) *Settler {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Settler{
		logger:     logger,
		gateway:    gateway,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Budget is the longest Settle can run when every gateway call takes the full
// callTimeout: each attempt makes up to two calls (post, then list), and the
// attempts are separated by retryDelay.
func Budget(maxRetries int, retryDelay, callTimeout time.Duration) time.Duration {
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempts := time.Duration(maxRetries + 1)
	return attempts*2*callTimeout + time.Duration(maxRetries)*retryDelay
}

// Budget is the package-level Budget for this settler's retry policy.
func (settler *Settler) Budget(callTimeout time.Duration) time.Duration {
	return Budget(settler.maxRetries, settler.retryDelay, callTimeout)
}

// Settle submits the charge, retrying the whole sequence on any failure. After
// the retries are exhausted the last failure is returned as a gateway error.
func (settler *Settler) Settle(ctx context.Context, charge Charge) error {
	ctx = settler.logger.WithRideID(ctx, charge.RideID)

	var lastErr error
retry:
	for attempt := 1; attempt <= settler.maxRetries+1; attempt++ {
		metrics.PaymentAttempts.Inc()

		lastErr = settler.attempt(ctx, charge)
		if lastErr == nil {
			metrics.PaymentOutcomes.WithLabelValues("settled").Inc()
			settler.logger.Info(ctx, "payment_settled", "Ride settled", map[string]any{
				"amount":  charge.Amount,
				"attempt": attempt,
			})
			return nil
		}

		settler.logger.Debug(ctx, "payment_attempt_failed", lastErr.Error(), map[string]any{
			"attempt": attempt,
		})
		if attempt > settler.maxRetries {
			break
		}

		// fixed delay, cut short by cancellation
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(settler.retryDelay):
		}
	}

	metrics.PaymentOutcomes.WithLabelValues("failed").Inc()
	settler.logger.Error(ctx, "payment_failed", "Settlement exhausted retries", lastErr, map[string]any{
		"amount": charge.Amount,
	})
	return apperr.Gateway("payment gateway failed", lastErr)
}

func (settler *Settler) attempt(ctx context.Context, charge Charge) error {
	accepted, err := settler.gateway.PostPayment(ctx, charge.Token, charge.Amount)
	if err != nil {
		return err
	}
	if accepted {
		return nil
	}

	// the gateway may have recorded the payment anyway: ask for its list
	payments, err := settler.gateway.ListPayments(ctx, charge.Token)
	if err != nil {
		return err
	}
	if len(payments) != charge.RideCount {
		return fmt.Errorf("%w: %d payments, %d rides", ErrPaymentMismatch, len(payments), charge.RideCount)
	}
	return nil
}
