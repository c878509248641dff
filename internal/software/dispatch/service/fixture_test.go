package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"isuride/internal/domain/geo"
	"isuride/internal/domain/ride"
	"isuride/internal/general/logger"
	"isuride/internal/general/memstore"
	"isuride/internal/ports"
	"isuride/internal/software/coupons"
	"isuride/internal/software/fare"
	"isuride/internal/software/ledger"
	"isuride/internal/software/matching"
	"isuride/internal/software/notification"
	"isuride/internal/software/settlement"

	"github.com/stretchr/testify/require"
)

// fakeGateway records accepted payments per token; down makes every POST fail.
type fakeGateway struct {
	mu       sync.Mutex
	down     bool
	posts    int
	payments map[string][]ports.Payment
}

func (g *fakeGateway) PostPayment(_ context.Context, token string, amount int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts++
	if g.down {
		return false, errors.New("gateway unreachable")
	}
	if g.payments == nil {
		g.payments = make(map[string][]ports.Payment)
	}
	g.payments[token] = append(g.payments[token], ports.Payment{Amount: amount, Status: "ok"})
	return true, nil
}

func (g *fakeGateway) ListPayments(_ context.Context, token string) ([]ports.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.Payment(nil), g.payments[token]...), nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []ride.Status
}

func (p *recordingPublisher) PublishStatus(_ context.Context, _ string, status ride.Status, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

type env struct {
	store   *memstore.Store
	repos   memstore.Repositories
	ledger  *ledger.Ledger
	gateway *fakeGateway
	pub     *recordingPublisher

	rider  ports.RiderService
	chair  ports.ChairService
	owner  ports.OwnerService
	match  ports.Matcher
	notify ports.NotificationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithLog(t, io.Discard)
}

func newEnvWithLog(t *testing.T, logOut io.Writer) *env {
	t.Helper()
	store := memstore.New()
	repos := store.Repositories()
	log := logger.NewWithWriter("test", logOut)
	l := ledger.New(repos.Statuses)
	cl := coupons.NewLedger(coupons.Policy{
		SignupCode:     "CP_NEW2024",
		SignupDiscount: 3000,
		InviteDiscount: 1500,
		RewardDiscount: 1000,
		InvitationCap:  3,
	}, repos.Users, repos.Coupons)
	calc := fare.NewCalculator(500, 100)
	gw := &fakeGateway{}
	pub := &recordingPublisher{}

	deps := Deps{
		Logger:    log,
		UoW:       store,
		Users:     repos.Users,
		Tokens:    repos.PaymentTokens,
		Owners:    repos.Owners,
		Chairs:    repos.Chairs,
		Locations: repos.Locations,
		Rides:     repos.Rides,
		Statuses:  repos.Statuses,
		Ledger:    l,
		Coupons:   cl,
		Fare:      calc,
		Settler:   settlement.NewSettler(log, gw, settlement.DefaultMaxRetries, time.Millisecond),
		Publisher: pub,
	}

	return &env{
		store:   store,
		repos:   repos,
		ledger:  l,
		gateway: gw,
		pub:     pub,
		rider:   NewRiderService(deps),
		chair:   NewChairService(deps),
		owner:   NewOwnerService(deps),
		match:   matching.NewEngine(log, store, repos.Rides, repos.Chairs, l, nil, 0),
		notify: notification.NewDispatcher(log, store, notification.Deps{
			Users:    repos.Users,
			Chairs:   repos.Chairs,
			Rides:    repos.Rides,
			Statuses: repos.Statuses,
			Ledger:   l,
			Coupons:  cl,
			Fare:     calc,
		}, 0),
	}
}

func (e *env) registerRider(t *testing.T, username, invitation string) ports.RegisterUserResult {
	t.Helper()
	res, err := e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{
		Username:       username,
		Firstname:      "Taro",
		Lastname:       "Isu",
		DateOfBirth:    "2000-01-01",
		InvitationCode: invitation,
	})
	require.NoError(t, err)
	return res
}

// activeChair registers an owner and an active chair and returns the chair id.
func (e *env) activeChair(t *testing.T, name string) string {
	t.Helper()
	ctx := context.Background()
	o, err := e.owner.RegisterOwner(ctx, "owner-"+name)
	require.NoError(t, err)
	c, err := e.chair.RegisterChair(ctx, ports.RegisterChairInput{Name: name, Model: "model-a", ChairRegisterToken: o.ChairRegisterToken})
	require.NoError(t, err)
	require.NoError(t, e.chair.SetActivity(ctx, c.ID, true))
	return c.ID
}

func (e *env) createRide(t *testing.T, userID string, pickup, dest geo.Coordinate) ports.CreateRideResult {
	t.Helper()
	res, err := e.rider.CreateRide(context.Background(), ports.CreateRideInput{UserID: userID, Pickup: &pickup, Destination: &dest})
	require.NoError(t, err)
	return res
}

// driveToArrival matches the oldest ride to a chair and walks it to ARRIVED.
func (e *env) driveToArrival(t *testing.T, rideID, chairID string, pickup, dest geo.Coordinate) {
	t.Helper()
	ctx := context.Background()

	res, err := e.match.MatchOnce(ctx)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, rideID, res.RideID)
	require.Equal(t, chairID, res.ChairID)

	require.NoError(t, e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: rideID, Status: "ENROUTE"}))
	_, err = e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: chairID, Coordinate: &pickup})
	require.NoError(t, err)
	require.NoError(t, e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: rideID, Status: "CARRYING"}))
	_, err = e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: chairID, Coordinate: &dest})
	require.NoError(t, err)

	require.Equal(t, ride.StatusArrived, e.status(t, rideID))
}

// drainChair polls the chair channel until nothing new is delivered.
func (e *env) drainChair(t *testing.T, chairID string) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := e.notify.PollChair(context.Background(), chairID)
		require.NoError(t, err)
		if !n.Delivered {
			return
		}
	}
	t.Fatal("chair channel never drained")
}

func (e *env) status(t *testing.T, rideID string) ride.Status {
	t.Helper()
	var s ride.Status
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		s, err = e.ledger.Current(ctx, rideID)
		return err
	}))
	return s
}

func (e *env) ride(t *testing.T, rideID string) *ride.Ride {
	t.Helper()
	var r *ride.Ride
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		r, err = e.repos.Rides.GetByID(ctx, rideID)
		return err
	}))
	return r
}
