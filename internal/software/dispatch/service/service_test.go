package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/coupon"
	"isuride/internal/domain/geo"
	"isuride/internal/domain/ride"
	"isuride/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd_CouponFares(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inviter := e.registerRider(t, "inviter", "")
	rider := e.registerRider(t, "rider", inviter.InvitationCode)
	chairID := e.activeChair(t, "c1")
	require.NoError(t, e.rider.RegisterPaymentMethod(ctx, ports.RegisterPaymentMethodInput{UserID: rider.ID, Token: "tok-rider"}))

	// first ride: the signup coupon (3000) covers the whole metered fare
	origin, first := geo.Coordinate{}, geo.Coordinate{Latitude: 0, Longitude: 10}
	r1 := e.createRide(t, rider.ID, origin, first)
	assert.Equal(t, 500, r1.Fare)

	e.driveToArrival(t, r1.RideID, chairID, origin, first)
	done, err := e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r1.RideID, Evaluation: 5})
	require.NoError(t, err)
	assert.NotZero(t, done.CompletedAt)
	assert.Equal(t, ride.StatusCompleted, e.status(t, r1.RideID))
	assert.NotNil(t, e.ride(t, r1.RideID).SettledAt)
	assert.Equal(t, []ports.Payment{{Amount: 500, Status: "ok"}}, e.gateway.payments["tok-rider"])

	// second ride: the oldest unused coupon is the 1500 invite coupon
	e.drainChair(t, chairID)
	second := geo.Coordinate{Latitude: 0, Longitude: 30}
	r2 := e.createRide(t, rider.ID, origin, second)
	assert.Equal(t, 2000, r2.Fare)

	e.driveToArrival(t, r2.RideID, chairID, origin, second)
	_, err = e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r2.RideID, Evaluation: 3})
	require.NoError(t, err)
	assert.Len(t, e.gateway.payments["tok-rider"], 2)
	assert.Equal(t, 2000, e.gateway.payments["tok-rider"][1].Amount)

	// every recorded event was fanned out in lifecycle order
	assert.Equal(t, append(append([]ride.Status{}, ride.Lifecycle...), ride.Lifecycle...), e.pub.statuses)
}

func TestRegisterUser_Validation(t *testing.T) {
	e := newEnv(t)

	_, err := e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{Username: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{
		Username: "x", Firstname: "a", Lastname: "b", DateOfBirth: "2000-01-01", InvitationCode: "nope",
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegisterUser_InvitationCap(t *testing.T) {
	e := newEnv(t)
	inviter := e.registerRider(t, "inviter", "")
	for _, name := range []string{"a", "b", "c"} {
		e.registerRider(t, name, inviter.InvitationCode)
	}

	_, err := e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{
		Username: "d", Firstname: "a", Lastname: "b", DateOfBirth: "2000-01-01", InvitationCode: inviter.InvitationCode,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	var rewards int
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context) error {
		owned, err := e.repos.Coupons.ListByUser(ctx, inviter.ID)
		for _, c := range owned {
			if strings.HasPrefix(c.Code, coupon.RewardPrefix(inviter.InvitationCode)) {
				rewards++
			}
		}
		return err
	}))
	assert.Equal(t, 3, rewards)

	// the rejected registration rolled back completely, so the username is still free
	e.registerRider(t, "d", "")
}

func TestRegisterUser_RejectionsAreNotLoggedAsErrors(t *testing.T) {
	var logs bytes.Buffer
	e := newEnvWithLog(t, &logs)
	inviter := e.registerRider(t, "inviter", "")
	for _, name := range []string{"a", "b", "c"} {
		e.registerRider(t, name, inviter.InvitationCode)
	}
	logs.Reset()

	_, err := e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{
		Username: "d", Firstname: "a", Lastname: "b", DateOfBirth: "2000-01-01", InvitationCode: inviter.InvitationCode,
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = e.rider.RegisterUser(context.Background(), ports.RegisterUserInput{
		Username: "e", Firstname: "a", Lastname: "b", DateOfBirth: "2000-01-01", InvitationCode: "no-such-code",
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.NotContains(t, logs.String(), `"level":"ERROR"`)
}

func TestCreateRide_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")

	_, err := e.rider.CreateRide(ctx, ports.CreateRideInput{UserID: rider.ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	e.createRide(t, rider.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 1})

	p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 2}
	_, err = e.rider.CreateRide(ctx, ports.CreateRideInput{UserID: rider.ID, Pickup: &p, Destination: &d})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateRide_ConcurrentRequestsBookOnce(t *testing.T) {
	e := newEnv(t)
	rider := e.registerRider(t, "rider", "")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 3}
			_, err := e.rider.CreateRide(context.Background(), ports.CreateRideInput{UserID: rider.ID, Pickup: &p, Destination: &d})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)
}

func TestEstimateFare_DoesNotConsumeCoupon(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 10, Longitude: 10}

	for i := 0; i < 2; i++ {
		est, err := e.rider.EstimateFare(ctx, ports.EstimateFareInput{UserID: rider.ID, Pickup: &p, Destination: &d})
		require.NoError(t, err)
		assert.Equal(t, 500, est.Fare)
		assert.Equal(t, 2000, est.Discount)
	}

	created := e.createRide(t, rider.ID, p, d)
	assert.Equal(t, 500, created.Fare)
}

func TestEvaluateRide_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	other := e.registerRider(t, "other", "")
	r := e.createRide(t, rider.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 1})

	_, err := e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r.RideID, Evaluation: 6})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: other.ID, RideID: r.RideID, Evaluation: 5})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r.RideID, Evaluation: 5})
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Equal(t, ride.StatusMatching, e.status(t, r.RideID))
}

func TestEvaluateRide_MissingTokenStaysArrived(t *testing.T) {
	e := newEnv(t)
	rider := e.registerRider(t, "rider", "")
	chairID := e.activeChair(t, "c1")
	p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 4}
	r := e.createRide(t, rider.ID, p, d)
	e.driveToArrival(t, r.RideID, chairID, p, d)

	_, err := e.rider.EvaluateRide(context.Background(), ports.EvaluateRideInput{UserID: rider.ID, RideID: r.RideID, Evaluation: 4})
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingDependency, apperr.KindOf(err))
	assert.Equal(t, ride.StatusArrived, e.status(t, r.RideID))
	assert.Nil(t, e.ride(t, r.RideID).Evaluation)
	assert.Zero(t, e.gateway.posts)
}

func TestEvaluateRide_GatewayFailureLeavesRideUnsettled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	chairID := e.activeChair(t, "c1")
	require.NoError(t, e.rider.RegisterPaymentMethod(ctx, ports.RegisterPaymentMethodInput{UserID: rider.ID, Token: "tok"}))
	p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 4}
	r := e.createRide(t, rider.ID, p, d)
	e.driveToArrival(t, r.RideID, chairID, p, d)
	e.gateway.down = true

	_, err := e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r.RideID, Evaluation: 4})
	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.Equal(t, 6, e.gateway.posts)

	got := e.ride(t, r.RideID)
	assert.Equal(t, ride.StatusCompleted, e.status(t, r.RideID))
	assert.Nil(t, got.SettledAt)
	require.NotNil(t, got.Evaluation)
	assert.Equal(t, 4, *got.Evaluation)
}

func TestUpdateRideStatus_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	chairID := e.activeChair(t, "c1")
	stranger := e.activeChair(t, "c2")
	require.NoError(t, e.chair.SetActivity(ctx, stranger, false))
	r := e.createRide(t, rider.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 4})

	res, err := e.match.MatchOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, chairID, res.ChairID)

	err = e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: r.RideID, Status: "PICKUP"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: stranger, RideID: r.RideID, Status: "ENROUTE"})
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	err = e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: "no-such-ride", Status: "ENROUTE"})
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	require.NoError(t, e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: r.RideID, Status: "ENROUTE"}))

	err = e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: r.RideID, Status: "CARRYING"})
	assert.ErrorIs(t, err, apperr.InvalidTransition("chair has not arrived yet"))
	assert.Equal(t, ride.StatusEnroute, e.status(t, r.RideID))
}

func TestRecordCoordinate_OnlyExactArrivalAdvances(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	chairID := e.activeChair(t, "c1")
	pickup := geo.Coordinate{Latitude: 5, Longitude: 5}
	r := e.createRide(t, rider.ID, pickup, geo.Coordinate{})

	_, err := e.match.MatchOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, e.chair.UpdateRideStatus(ctx, ports.ChairRideStatusInput{ChairID: chairID, RideID: r.RideID, Status: "ENROUTE"}))

	near := geo.Coordinate{Latitude: 5, Longitude: 4}
	res, err := e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: chairID, Coordinate: &near})
	require.NoError(t, err)
	assert.NotZero(t, res.RecordedAt)
	assert.Equal(t, ride.StatusEnroute, e.status(t, r.RideID))

	_, err = e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: chairID, Coordinate: &pickup})
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPickup, e.status(t, r.RideID))

	_, err = e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: chairID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegisterChair_BadToken(t *testing.T) {
	e := newEnv(t)

	_, err := e.chair.RegisterChair(context.Background(), ports.RegisterChairInput{Name: "c", Model: "m", ChairRegisterToken: "bogus"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = e.owner.RegisterOwner(context.Background(), " ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// missing fields are rejected before the token is looked up
	_, err = e.chair.RegisterChair(context.Background(), ports.RegisterChairInput{Name: "", Model: "m", ChairRegisterToken: "bogus"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = e.chair.RegisterChair(context.Background(), ports.RegisterChairInput{Name: "c", Model: " ", ChairRegisterToken: "bogus"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestNearbyChairs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	near := e.activeChair(t, "near")
	far := e.activeChair(t, "far")
	idle := e.activeChair(t, "inactive")
	require.NoError(t, e.chair.SetActivity(ctx, idle, false))
	e.activeChair(t, "nowhere") // never reported a coordinate

	for id, c := range map[string]geo.Coordinate{
		near: {Latitude: 10, Longitude: 10},
		far:  {Latitude: 100, Longitude: 100},
		idle: {Latitude: 1, Longitude: 1},
	} {
		c := c
		_, err := e.chair.RecordCoordinate(ctx, ports.ChairCoordinateInput{ChairID: id, Coordinate: &c})
		require.NoError(t, err)
	}

	res, err := e.rider.NearbyChairs(ctx, ports.NearbyChairsInput{Center: geo.Coordinate{}, Distance: 50})
	require.NoError(t, err)
	require.Len(t, res.Chairs, 1)
	assert.Equal(t, near, res.Chairs[0].ID)
	assert.Equal(t, geo.Coordinate{Latitude: 10, Longitude: 10}, res.Chairs[0].CurrentCoordinate)
	assert.NotZero(t, res.RetrievedAt)
}

func TestListRides_CompletedOnlyNewestFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rider := e.registerRider(t, "rider", "")
	chairID := e.activeChair(t, "c1")
	require.NoError(t, e.rider.RegisterPaymentMethod(ctx, ports.RegisterPaymentMethodInput{UserID: rider.ID, Token: "tok"}))

	p, d := geo.Coordinate{}, geo.Coordinate{Latitude: 10}
	r1 := e.createRide(t, rider.ID, p, d)
	e.driveToArrival(t, r1.RideID, chairID, p, d)
	_, err := e.rider.EvaluateRide(ctx, ports.EvaluateRideInput{UserID: rider.ID, RideID: r1.RideID, Evaluation: 5})
	require.NoError(t, err)
	e.drainChair(t, chairID)

	r2 := e.createRide(t, rider.ID, p, d)

	got, err := e.rider.ListRides(ctx, rider.ID)
	require.NoError(t, err)
	require.Len(t, got.Rides, 1, "the open ride %s is not listed", r2.RideID)

	item := got.Rides[0]
	assert.Equal(t, r1.RideID, item.ID)
	assert.Equal(t, 5, item.Evaluation)
	assert.Equal(t, r1.Fare, item.Fare)
	assert.Equal(t, "owner-c1", item.Chair.Owner)
	assert.Equal(t, "c1", item.Chair.Name)
	assert.GreaterOrEqual(t, item.CompletedAt, item.RequestedAt)
}
