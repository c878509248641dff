package service

import (
	"context"
	"errors"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/ride"
	"isuride/internal/ports"
	"isuride/internal/software/settlement"
)

// EvaluateRide records the rider's rating, completes the ride and settles its
// fare. A settlement failure leaves the ride COMPLETED and unsettled.
func (service *dispatchService) EvaluateRide(ctx context.Context, in ports.EvaluateRideInput) (ports.EvaluateRideResult, error) {
	if err := ride.ValidEvaluation(in.Evaluation); err != nil {
		return ports.EvaluateRideResult{}, apperr.Validation(err.Error())
	}
	ctx = service.logger.WithRideID(ctx, in.RideID)

	var (
		completed *ride.StatusEvent
		charge    = settlement.Charge{RideID: in.RideID}
	)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// lock the ride
		r, err := service.rideRepo.LockByID(txCtx, in.RideID)
		if errors.Is(err, ports.ErrNotFound) || (err == nil && r.RiderID != in.UserID) {
			return apperr.NotFound("ride not found")
		}
		if err != nil {
			return err
		}

		status, err := service.ledger.Current(txCtx, r.ID)
		if err != nil {
			return err
		}
		if status != ride.StatusArrived {
			return apperr.InvalidTransition("not arrived yet")
		}

		// without a token settlement can never run, so the ride stays ARRIVED
		token, err := service.tokenRepo.GetByUser(txCtx, r.RiderID)
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.MissingDependency("payment token not registered")
		}
		if err != nil {
			return err
		}

		if err := service.rideRepo.SetEvaluation(txCtx, r.ID, in.Evaluation); err != nil {
			return err
		}
		if completed, err = service.ledger.Record(txCtx, r.ID, ride.StatusCompleted); err != nil {
			return err
		}

		discount, err := service.coupons.DiscountForRide(txCtx, r.ID)
		if err != nil {
			return err
		}
		count, err := service.rideRepo.CountByUser(txCtx, r.RiderID)
		if err != nil {
			return err
		}

		charge.Token = token.Token
		charge.Amount = service.fare.Total(r.Pickup, r.Destination, discount)
		charge.RideCount = count
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "ride_evaluate_failed", "Failed to evaluate ride", err, map[string]any{
				"user_id": in.UserID,
			})
		}
		return ports.EvaluateRideResult{}, err
	}

	service.publishStatuses(ctx, completed)

	// settle outside the transaction: the gateway may take several retries
	if err := service.settler.Settle(ctx, charge); err != nil {
		return ports.EvaluateRideResult{}, err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.MarkSettled(txCtx, in.RideID, time.Now().UTC())
	})
	if err != nil {
		// the charge went through; only the bookkeeping is missing
		service.logger.Error(ctx, "ride_settle_record_failed", "Failed to stamp settled_at", err, nil)
	}

	service.logger.Info(ctx, "ride_completed", "Ride completed and settled", map[string]any{
		"evaluation": in.Evaluation,
		"amount":     charge.Amount,
	})
	return ports.EvaluateRideResult{CompletedAt: completed.CreatedAt.UnixMilli()}, nil
}
