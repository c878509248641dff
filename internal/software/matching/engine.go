// Package matching pairs the oldest unmatched ride with a free chair.
package matching

import (
	"context"
	"errors"
	"fmt"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/ride"
	"isuride/internal/general/logger"
	"isuride/internal/general/metrics"
	"isuride/internal/ports"
	"isuride/internal/software/ledger"
)

// DefaultMaxDraws bounds the random chair draws of one round.
const DefaultMaxDraws = 10

// Engine runs matching rounds. It is safe for concurrent use: concurrent rounds
// lock different rides and chairs with SKIP LOCKED and never wait on each other.
type Engine struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	rides    ports.RideRepository
	chairs   ports.ChairRepository
	ledger   *ledger.Ledger
	lock     ports.MatchLock // optional
	maxDraws int
}

// NewEngine wires an Engine. lock may be nil.
func NewEngine(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	rides ports.RideRepository,
	chairs ports.ChairRepository,
	statusLedger *ledger.Ledger,
	lock ports.MatchLock,
	maxDraws int,
) *Engine {
	if maxDraws <= 0 {
		maxDraws = DefaultMaxDraws
	}
	return &Engine{
		logger:   logger,
		uow:      uow,
		rides:    rides,
		chairs:   chairs,
		ledger:   statusLedger,
		lock:     lock,
		maxDraws: maxDraws,
	}
}

// MatchOnce matches at most one ride: the oldest one without a chair.
// Finding nothing to do is not an error.
func (engine *Engine) MatchOnce(ctx context.Context) (ports.MatchResult, error) {
	if engine.lock != nil {
		release, ok, err := engine.lock.TryLock(ctx)
		if err != nil {
			// the lock only avoids wasted rounds; row locks still protect the data
			engine.logger.Error(ctx, "match_lock_failed", "Failed to acquire matching lock", err, nil)
		} else if !ok {
			metrics.MatchingRounds.WithLabelValues("skipped").Inc()
			return ports.MatchResult{}, nil
		} else {
			defer release()
		}
	}

	var (
		res     ports.MatchResult
		outcome string
	)

	err := engine.uow.WithinTx(ctx, func(txCtx context.Context) error {
		res, outcome = ports.MatchResult{}, ""

		// pick the oldest unmatched ride
		r, err := engine.rides.LockOldestUnmatched(txCtx)
		if errors.Is(err, ports.ErrNotFound) {
			outcome = "no_ride"
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock oldest unmatched ride: %w", err)
		}
		res.RideID = r.ID

		// a chair may only be assigned while the ride is MATCHING
		current, err := engine.ledger.Current(txCtx, r.ID)
		if err != nil {
			return err
		}
		if current != ride.StatusMatching {
			return apperr.Internal("unmatched ride is not MATCHING", fmt.Errorf("ride %s is %s", r.ID, current))
		}

		// draw candidate chairs
		for draw := 1; draw <= engine.maxDraws; draw++ {
			res.Draws = draw

			candidate, err := engine.chairs.RandomActive(txCtx)
			if errors.Is(err, ports.ErrNotFound) {
				outcome = "no_chair"
				return nil
			}
			if err != nil {
				return fmt.Errorf("draw chair: %w", err)
			}

			// busy or locked by a concurrent round: draw again
			c, err := engine.chairs.LockFreeByID(txCtx, candidate.ID)
			if errors.Is(err, ports.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("lock chair %s: %w", candidate.ID, err)
			}

			if err := engine.rides.AssignChair(txCtx, r.ID, c.ID); err != nil {
				return fmt.Errorf("assign chair: %w", err)
			}
			if err := engine.chairs.SetBusy(txCtx, c.ID, true); err != nil {
				return fmt.Errorf("mark chair busy: %w", err)
			}

			res.ChairID = c.ID
			res.Matched = true
			outcome = "matched"
			return nil
		}

		outcome = "exhausted"
		return nil
	})
	if err != nil {
		metrics.MatchingRounds.WithLabelValues("error").Inc()
		engine.logger.Error(ctx, "matching_failed", "Matching round failed", err, map[string]any{
			"ride_id": res.RideID,
		})
		return ports.MatchResult{}, err
	}

	metrics.MatchingRounds.WithLabelValues(outcome).Inc()
	if res.Draws > 0 {
		metrics.MatchingDraws.Observe(float64(res.Draws))
	}

	if res.Matched {
		engine.logger.Info(engine.logger.WithRideID(ctx, res.RideID), "ride_matched", "Chair assigned to ride", map[string]any{
			"chair_id": res.ChairID,
			"draws":    res.Draws,
		})
	} else if outcome != "no_ride" {
		engine.logger.Debug(ctx, "matching_no_chair", "No free chair for the oldest ride", map[string]any{
			"ride_id": res.RideID,
			"outcome": outcome,
			"draws":   res.Draws,
		})
	}

	return res, nil
}
