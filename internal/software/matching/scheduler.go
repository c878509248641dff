package matching

import (
	"context"
	"time"

	"isuride/internal/general/logger"
	"isuride/internal/ports"
)

// Scheduler is the periodic trigger of the matching engine. Besides the
// ticker, Nudge requests an extra round as soon as possible.
type Scheduler struct {
	logger   *logger.Logger
	matcher  ports.Matcher
	interval time.Duration
	nudge    chan struct{}
}

// NewScheduler builds a Scheduler that runs matcher every interval.
func NewScheduler(logger *logger.Logger, matcher ports.Matcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		logger:   logger,
		matcher:  matcher,
		interval: interval,
		nudge:    make(chan struct{}, 1),
	}
}

// Nudge asks for an extra round. Nudges arriving while one is pending are merged.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Run triggers rounds until ctx is cancelled. A round that matched a ride is
// followed immediately by another one, since more rides may be waiting.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "matching_scheduler_started", "Matching scheduler started", map[string]any{
		"interval_ms": s.interval.Milliseconds(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "matching_scheduler_stopped", "Matching scheduler stopped", nil)
			return nil
		case <-ticker.C:
		case <-s.nudge:
		}

		s.drain(ctx)
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.matcher.MatchOnce(ctx)
		if err != nil || !res.Matched {
			return
		}
	}
}
