package matcherservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"isuride/internal/general/config"
	"isuride/internal/general/contracts"
	"isuride/internal/general/logger"
	"isuride/internal/general/postgres"
	"isuride/internal/general/rabbitmq"
	"isuride/internal/general/redis"
	"isuride/internal/ports"
	"isuride/internal/software/ledger"
	"isuride/internal/software/matching"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const serviceName = "matcher-service"

// Run drives the matching engine on a ticker, nudged by ride.status.matching
// events, and blocks until ctx is cancelled. interval <= 0 uses the config value.
func Run(ctx context.Context, interval time.Duration, prefetch int) error {
	logger := logger.New(serviceName)
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(config.Path())
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	if interval <= 0 {
		interval = cfg.Matching.Interval
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	uow := postgres.NewUnitOfWork(pool)
	repos := postgres.NewRepositories()

	var lock ports.MatchLock
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, cfg)
		if err != nil {
			logger.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
			return err
		}
		defer rdb.Close()
		lock = redis.NewMatchLock(rdb, 0)
	}

	engine := matching.NewEngine(logger, uow, repos.Rides, repos.Chairs, ledger.New(repos.Statuses), lock, cfg.Matching.MaxDraws)
	scheduler := matching.NewScheduler(logger, engine, interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })

	if cfg.RabbitMQ.Host != "" {
		rmq, err := rabbitmq.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()

		g.Go(func() error {
			return rmq.ConsumeForever(gctx, contracts.QueueRideMatching, serviceName, prefetch, nudgeHandler(logger, scheduler))
		})
	}

	logger.Info(ctx, "service_started", fmt.Sprintf("Matcher Service started (interval %s)", interval), map[string]any{
		"interval_ms": interval.Milliseconds(),
		"prefetch":    prefetch,
		"nudges":      cfg.RabbitMQ.Host != "",
	})

	return g.Wait()
}

// nudgeHandler turns a MATCHING status event into an immediate matching round.
func nudgeHandler(logger *logger.Logger, scheduler *matching.Scheduler) func(context.Context, amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		var msg contracts.RideStatusMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			logger.Error(ctx, "status_message_invalid", "Failed to decode ride status message", err, nil)
			return err
		}
		logger.Debug(logger.WithRideID(ctx, msg.RideID), "matching_nudged", "Ride waiting for a chair", map[string]any{
			"correlation_id": msg.CorrelationID,
		})
		scheduler.Nudge()
		return nil
	}
}
