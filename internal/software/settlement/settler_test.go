package settlement

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/general/logger"
	"isuride/internal/general/payment"
	"isuride/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGateway answers PostPayment from a queue and keeps its own payment list.
type scriptedGateway struct {
	mu       sync.Mutex
	posts    int
	answers  []postAnswer
	payments []ports.Payment
	listErr  error
}

type postAnswer struct {
	accepted bool
	record   bool
	err      error
}

func (g *scriptedGateway) PostPayment(_ context.Context, _ string, amount int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := postAnswer{accepted: true, record: true}
	if g.posts < len(g.answers) {
		a = g.answers[g.posts]
	}
	g.posts++
	if a.record {
		g.payments = append(g.payments, ports.Payment{Amount: amount, Status: "ok"})
	}
	return a.accepted, a.err
}

func (g *scriptedGateway) ListPayments(context.Context, string) ([]ports.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]ports.Payment(nil), g.payments...), nil
}

func newSettler(gw ports.PaymentGateway) *Settler {
	return NewSettler(logger.NewWithWriter("test", io.Discard), gw, DefaultMaxRetries, time.Millisecond)
}

func TestSettle_AcceptedFirstTry(t *testing.T) {
	gw := &scriptedGateway{}
	err := newSettler(gw).Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.posts)
}

func TestSettle_AmbiguousButRecordedReconciles(t *testing.T) {
	// the gateway charged but answered 500: the list matches the ride count
	gw := &scriptedGateway{answers: []postAnswer{{accepted: false, record: true}}}
	err := newSettler(gw).Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.posts)
}

func TestSettle_AmbiguousNotRecordedRetries(t *testing.T) {
	gw := &scriptedGateway{answers: []postAnswer{{accepted: false, record: false}}}
	err := newSettler(gw).Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, gw.posts)
	assert.Len(t, gw.payments, 1)
}

func TestSettle_ExhaustsAfterSixAttempts(t *testing.T) {
	down := errors.New("connection refused")
	answers := make([]postAnswer, 10)
	for i := range answers {
		answers[i] = postAnswer{err: down}
	}
	gw := &scriptedGateway{answers: answers}

	err := newSettler(gw).Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 6, gw.posts)
}

func TestSettle_CountMismatchIsRetriedThenFails(t *testing.T) {
	answers := make([]postAnswer, 10)
	for i := range answers {
		answers[i] = postAnswer{accepted: false, record: false}
	}
	gw := &scriptedGateway{answers: answers}

	err := newSettler(gw).Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Equal(t, 6, gw.posts)
}

// slowGateway takes the full call timeout on every call and never records.
type slowGateway struct {
	delay time.Duration
	posts atomic.Int32
}

func (g *slowGateway) PostPayment(context.Context, string, int) (bool, error) {
	time.Sleep(g.delay)
	g.posts.Add(1)
	return false, nil
}

func (g *slowGateway) ListPayments(context.Context, string) ([]ports.Payment, error) {
	time.Sleep(g.delay)
	return nil, nil
}

func TestBudget(t *testing.T) {
	assert.Equal(t, 60*time.Second+500*time.Millisecond, Budget(DefaultMaxRetries, DefaultRetryDelay, 5*time.Second))
	assert.Equal(t, 10*time.Second, Budget(-1, time.Second, 5*time.Second))
}

func TestSettle_EveryAttemptFitsTheBudget(t *testing.T) {
	const callTimeout = 20 * time.Millisecond
	gw := &slowGateway{delay: callTimeout}
	s := NewSettler(logger.NewWithWriter("test", io.Discard), gw, DefaultMaxRetries, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), s.Budget(callTimeout)+200*time.Millisecond)
	defer cancel()

	err := s.Settle(ctx, Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Equal(t, int32(DefaultMaxRetries+1), gw.posts.Load())
}

func TestSettle_StopsOnCancel(t *testing.T) {
	gw := &scriptedGateway{answers: []postAnswer{{err: errors.New("down")}}}
	s := NewSettler(logger.NewWithWriter("test", io.Discard), gw, DefaultMaxRetries, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := s.Settle(ctx, Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gw.posts)
}

func TestSettle_OverHTTPGateway(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		case http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	s := newSettler(payment.NewHTTPGateway(srv.URL, time.Second))
	err := s.Settle(context.Background(), Charge{RideID: "r1", Token: "tok", Amount: 500, RideCount: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.EqualValues(t, 6, posts.Load())
}
