package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/chair"
	"isuride/internal/domain/geo"
	"isuride/internal/domain/ride"
	"isuride/internal/ports"
)

var errMissingCoordinates = apperr.Validation("required fields(pickup_coordinate, destination_coordinate) are empty")

// CreateRide books a ride for a rider with no ride in progress. The coupon is
// selected and consumed before the ride row exists, so concurrent requests of
// one rider cannot both spend it.
func (service *dispatchService) CreateRide(ctx context.Context, in ports.CreateRideInput) (ports.CreateRideResult, error) {
	if in.Pickup == nil || in.Destination == nil {
		return ports.CreateRideResult{}, errMissingCoordinates
	}

	var (
		rideID = service.newID()
		fare   int
		start  *ride.StatusEvent
	)
	ctx = service.logger.WithRideID(ctx, rideID)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// lock the rider so its ride requests are serialized
		if _, err := service.userRepo.LockByID(txCtx, in.UserID); err != nil {
			return notFoundAs(err, "user not found")
		}

		// one ride in progress per rider
		rides, err := service.rideRepo.ListByUser(txCtx, in.UserID)
		if err != nil {
			return err
		}
		for _, r := range rides {
			status, err := service.ledger.Current(txCtx, r.ID)
			if err != nil {
				return err
			}
			if status != ride.StatusCompleted {
				return apperr.Conflict("ride already exists")
			}
		}

		// attach the coupon first
		c, err := service.coupons.AttachForRide(txCtx, in.UserID, rideID, len(rides) == 0)
		if err != nil {
			return err
		}
		discount := 0
		if c != nil {
			discount = c.Discount
		}

		// create the ride and its MATCHING event
		r, err := ride.NewRide(rideID, in.UserID, *in.Pickup, *in.Destination)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		if err := service.rideRepo.Create(txCtx, r); err != nil {
			return err
		}
		if start, err = service.ledger.Start(txCtx, rideID); err != nil {
			return err
		}

		fare = service.fare.Total(r.Pickup, r.Destination, discount)
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "ride_create_failed", "Failed to create ride", err, map[string]any{
				"user_id": in.UserID,
			})
		}
		return ports.CreateRideResult{}, err
	}

	service.publishStatuses(ctx, start)

	service.logger.Info(ctx, "ride_requested", fmt.Sprintf("Ride %s requested", rideID), map[string]any{
		"user_id": in.UserID,
		"fare":    fare,
	})
	return ports.CreateRideResult{RideID: rideID, Fare: fare}, nil
}

// EstimateFare previews the fare with the coupon CreateRide would pick, without consuming it.
func (service *dispatchService) EstimateFare(ctx context.Context, in ports.EstimateFareInput) (ports.EstimateFareResult, error) {
	if in.Pickup == nil || in.Destination == nil {
		return ports.EstimateFareResult{}, errMissingCoordinates
	}

	var out ports.EstimateFareResult
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		count, err := service.rideRepo.CountByUser(txCtx, in.UserID)
		if err != nil {
			return err
		}
		c, err := service.coupons.Preview(txCtx, in.UserID, count == 0)
		if err != nil {
			return err
		}

		discount := 0
		if c != nil {
			discount = c.Discount
		}
		full := service.fare.Total(*in.Pickup, *in.Destination, 0)
		out.Fare = service.fare.Total(*in.Pickup, *in.Destination, discount)
		out.Discount = full - out.Fare
		return nil
	})
	if err != nil {
		return ports.EstimateFareResult{}, err
	}
	return out, nil
}

// ListRides returns the rider's completed rides, newest first.
func (service *dispatchService) ListRides(ctx context.Context, userID string) (ports.RideHistoryResult, error) {
	out := ports.RideHistoryResult{Rides: []ports.RideHistoryItem{}}

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		rides, err := service.rideRepo.ListByUser(txCtx, userID)
		if err != nil {
			return err
		}

		for i := len(rides) - 1; i >= 0; i-- {
			r := rides[i]

			last, err := service.statusRepo.Latest(txCtx, r.ID)
			if err != nil {
				return fmt.Errorf("latest status of %s: %w", r.ID, err)
			}
			if last.Status != ride.StatusCompleted || r.ChairID == nil {
				continue
			}

			c, err := service.chairRepo.GetByID(txCtx, *r.ChairID)
			if err != nil {
				return fmt.Errorf("chair of %s: %w", r.ID, err)
			}
			o, err := service.ownerRepo.GetByID(txCtx, c.OwnerID)
			if err != nil {
				return fmt.Errorf("owner of %s: %w", c.ID, err)
			}
			discount, err := service.coupons.DiscountForRide(txCtx, r.ID)
			if err != nil {
				return err
			}

			item := ports.RideHistoryItem{
				ID:                    r.ID,
				PickupCoordinate:      r.Pickup,
				DestinationCoordinate: r.Destination,
				Chair:                 ports.HistoryChair{ID: c.ID, Owner: o.Name, Name: c.Name, Model: c.Model},
				Fare:                  service.fare.Total(r.Pickup, r.Destination, discount),
				RequestedAt:           r.CreatedAt.UnixMilli(),
				CompletedAt:           last.CreatedAt.UnixMilli(),
			}
			if r.Evaluation != nil {
				item.Evaluation = *r.Evaluation
			}
			out.Rides = append(out.Rides, item)
		}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "ride_history_failed", "Failed to list rides", err, map[string]any{"user_id": userID})
		return ports.RideHistoryResult{}, err
	}
	return out, nil
}

// NearbyChairs lists active idle chairs whose latest coordinate lies within
// in.Distance of in.Center. Coordinates come from the cache when available.
func (service *dispatchService) NearbyChairs(ctx context.Context, in ports.NearbyChairsInput) (ports.NearbyChairsResult, error) {
	if in.Distance < 0 {
		return ports.NearbyChairsResult{}, apperr.Validation("distance must not be negative")
	}

	var chairs []chair.Chair
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		chairs, err = service.chairRepo.ListAvailable(txCtx)
		return err
	})
	if err != nil {
		return ports.NearbyChairsResult{}, err
	}

	coords := make(map[string]geo.Coordinate, len(chairs))
	var misses []string
	for _, c := range chairs {
		if service.locCache == nil {
			misses = append(misses, c.ID)
			continue
		}
		loc, err := service.locCache.Get(ctx, c.ID)
		switch {
		case err == nil:
			coords[c.ID] = loc.Coordinate
		case errors.Is(err, ports.ErrNotFound):
			misses = append(misses, c.ID)
		default:
			service.logger.Debug(ctx, "location_cache_failed", err.Error(), map[string]any{"chair_id": c.ID})
			misses = append(misses, c.ID)
		}
	}

	if len(misses) > 0 {
		err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			for _, id := range misses {
				loc, err := service.locationRepo.Latest(txCtx, id)
				if errors.Is(err, ports.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				coords[id] = loc.Coordinate
			}
			return nil
		})
		if err != nil {
			return ports.NearbyChairsResult{}, err
		}
	}

	out := ports.NearbyChairsResult{Chairs: []ports.NearbyChair{}, RetrievedAt: time.Now().UnixMilli()}
	for _, c := range chairs {
		at, ok := coords[c.ID]
		if !ok || in.Center.DistanceTo(at) > in.Distance {
			continue
		}
		out.Chairs = append(out.Chairs, ports.NearbyChair{ID: c.ID, Name: c.Name, Model: c.Model, CurrentCoordinate: at})
	}
	return out, nil
}
