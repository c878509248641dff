package service

import (
	"context"
	"errors"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/chair"
	"isuride/internal/domain/ride"
	"isuride/internal/ports"
)

// SetActivity toggles whether the chair takes part in matching.
func (service *dispatchService) SetActivity(ctx context.Context, chairID string, active bool) error {
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return notFoundAs(service.chairRepo.SetActive(txCtx, chairID, active), "chair not found")
	})
	if err != nil {
		return err
	}

	service.logger.Info(ctx, "chair_activity_changed", "Chair activity changed", map[string]any{
		"chair_id":  chairID,
		"is_active": active,
	})
	return nil
}

// RecordCoordinate stores a location sample. Reaching the pickup while ENROUTE
// records PICKUP; reaching the destination while CARRYING records ARRIVED.
func (service *dispatchService) RecordCoordinate(ctx context.Context, in ports.ChairCoordinateInput) (ports.ChairCoordinateResult, error) {
	if in.Coordinate == nil {
		return ports.ChairCoordinateResult{}, apperr.Validation("required fields(latitude, longitude) are empty")
	}

	loc := chair.NewLocation(service.newID(), in.ChairID, *in.Coordinate)
	var recorded *ride.StatusEvent

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.locationRepo.Append(txCtx, loc); err != nil {
			return err
		}

		latest, err := service.rideRepo.LatestForChair(txCtx, in.ChairID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		// lock before reading the status so acknowledgements serialize with us
		r, err := service.rideRepo.LockByID(txCtx, latest.ID)
		if err != nil {
			return err
		}
		status, err := service.ledger.Current(txCtx, r.ID)
		if err != nil {
			return err
		}

		var next ride.Status
		switch {
		case status == ride.StatusEnroute && loc.Coordinate.Equal(r.Pickup):
			next = ride.StatusPickup
		case status == ride.StatusCarrying && loc.Coordinate.Equal(r.Destination):
			next = ride.StatusArrived
		default:
			return nil
		}

		recorded, err = service.ledger.Record(txCtx, r.ID, next)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "chair_coordinate_failed", "Failed to record chair coordinate", err, map[string]any{
				"chair_id": in.ChairID,
			})
		}
		return ports.ChairCoordinateResult{}, err
	}

	service.publishStatuses(ctx, recorded)
	service.fanOutLocation(ctx, loc)

	return ports.ChairCoordinateResult{RecordedAt: loc.CreatedAt.UnixMilli()}, nil
}

// fanOutLocation refreshes the cache and streams the sample. Both are best-effort.
func (service *dispatchService) fanOutLocation(ctx context.Context, loc *chair.Location) {
	if service.locCache != nil {
		if err := service.locCache.Put(ctx, *loc); err != nil {
			service.logger.Error(ctx, "location_cache_failed", "Failed to cache chair location", err, map[string]any{
				"chair_id": loc.ChairID,
			})
		}
	}
	if service.stream != nil {
		if err := service.stream.PublishLocation(ctx, *loc); err != nil {
			service.logger.Error(ctx, "location_publish_failed", "Failed to stream chair location", err, map[string]any{
				"chair_id": loc.ChairID,
			})
		}
	}
}

// UpdateRideStatus handles the chair's explicit acknowledgements: ENROUTE after
// matching and CARRYING once the rider is picked up.
func (service *dispatchService) UpdateRideStatus(ctx context.Context, in ports.ChairRideStatusInput) error {
	next, err := ride.ParseStatus(in.Status)
	if err != nil || (next != ride.StatusEnroute && next != ride.StatusCarrying) {
		return apperr.Validation("invalid status")
	}
	ctx = service.logger.WithRideID(ctx, in.RideID)

	var recorded *ride.StatusEvent
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// an unknown ride is not assigned to this chair either
		r, err := service.rideRepo.LockByID(txCtx, in.RideID)
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.InvalidTransition("not assigned to this ride")
		}
		if err != nil {
			return err
		}
		if !r.AssignedTo(in.ChairID) {
			return apperr.InvalidTransition("not assigned to this ride")
		}

		if next == ride.StatusCarrying {
			status, err := service.ledger.Current(txCtx, r.ID)
			if err != nil {
				return err
			}
			if status != ride.StatusPickup {
				return apperr.InvalidTransition("chair has not arrived yet")
			}
		}

		recorded, err = service.ledger.Record(txCtx, r.ID, next)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "ride_status_update_failed", "Failed to update ride status", err, map[string]any{
				"chair_id": in.ChairID,
				"status":   in.Status,
			})
		}
		return err
	}

	service.publishStatuses(ctx, recorded)
	service.logger.Info(ctx, "ride_status_updated", "Chair acknowledged ride", map[string]any{
		"chair_id": in.ChairID,
		"status":   next.String(),
	})
	return nil
}
