package dispatchservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"isuride/internal/general/config"
	"isuride/internal/general/jwt"
	"isuride/internal/general/kafka"
	"isuride/internal/general/logger"
	"isuride/internal/general/memstore"
	"isuride/internal/general/metrics"
	"isuride/internal/general/payment"
	"isuride/internal/general/postgres"
	"isuride/internal/general/rabbitmq"
	"isuride/internal/general/redis"
	"isuride/internal/general/websocket"
	"isuride/internal/ports"
	"isuride/internal/software/coupons"
	"isuride/internal/software/dispatch/handler"
	"isuride/internal/software/dispatch/service"
	"isuride/internal/software/fare"
	"isuride/internal/software/ledger"
	"isuride/internal/software/matching"
	"isuride/internal/software/notification"
	"isuride/internal/software/settlement"

	"golang.org/x/sync/errgroup"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	serviceName = "dispatch-service"
)

// Run wires the dispatch service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int, storage string) error {
	// set up a new logger with a static request ID for startup logs
	logger := logger.New(serviceName)
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile(config.Path())
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// storage: Postgres, or the in-memory store for local runs
	var (
		uow   ports.UnitOfWork
		repos ports.Repositories
	)
	switch storage {
	case StorageMemory:
		store := memstore.New()
		uow, repos = store, store.Repositories()
		logger.Info(ctx, "storage_selected", "Using in-memory storage", nil)
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
			return err
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, logger); err != nil {
			logger.Error(ctx, "db_migration_failed", "Failed to apply migrations", err, nil)
			return err
		}
		uow, repos = postgres.NewUnitOfWork(pool), postgres.NewRepositories()
	default:
		return fmt.Errorf("unknown storage %q", storage)
	}

	deps := service.Deps{
		Logger:    logger,
		UoW:       uow,
		Users:     repos.Users,
		Tokens:    repos.PaymentTokens,
		Owners:    repos.Owners,
		Chairs:    repos.Chairs,
		Locations: repos.Locations,
		Rides:     repos.Rides,
		Statuses:  repos.Statuses,
	}

	// status event fan-out over RabbitMQ (optional)
	if cfg.RabbitMQ.Host != "" {
		rmq, err := rabbitmq.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		deps.Publisher = rabbitmq.NewStatusPublisher(rmq, serviceName)
	}

	// location cache and matching lock over Redis (optional)
	var matchLock ports.MatchLock
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, cfg)
		if err != nil {
			logger.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
			return err
		}
		defer rdb.Close()
		deps.LocationCache = redis.NewLocationCache(rdb, 0)
		matchLock = redis.NewMatchLock(rdb, 0)
	}

	// chair location stream over Kafka (optional)
	if len(cfg.Kafka.Brokers) > 0 {
		writer := kafka.NewLocationWriter(cfg.Kafka.Brokers, cfg.Kafka.LocationTopic, serviceName)
		defer writer.Close()
		deps.LocationStream = writer
	}

	// payment gateway
	gateway, err := payment.New(cfg)
	if err != nil {
		logger.Error(ctx, "payment_gateway_init_failed", "Failed to set up payment gateway", err, nil)
		return err
	}

	// domain components
	deps.Ledger = ledger.New(repos.Statuses)
	deps.Coupons = coupons.NewLedger(coupons.Policy{
		SignupCode:     cfg.Coupons.SignupCode,
		SignupDiscount: cfg.Coupons.SignupDiscount,
		InviteDiscount: cfg.Coupons.InviteDiscount,
		RewardDiscount: cfg.Coupons.RewardDiscount,
		InvitationCap:  cfg.Coupons.InvitationCap,
	}, repos.Users, repos.Coupons)
	deps.Fare = fare.NewCalculator(cfg.Fare.Initial, cfg.Fare.PerDistance)
	deps.Settler = settlement.NewSettler(logger, gateway, cfg.Payment.MaxRetries, cfg.Payment.RetryDelay)
	settleTimeout := handler.SettleTimeout(deps.Settler.Budget(cfg.Payment.Timeout))

	notify := notification.NewDispatcher(logger, uow, notification.Deps{
		Users:    repos.Users,
		Chairs:   repos.Chairs,
		Rides:    repos.Rides,
		Statuses: repos.Statuses,
		Ledger:   deps.Ledger,
		Coupons:  deps.Coupons,
		Fare:     deps.Fare,
	}, cfg.Notification.RetryAfter)
	matcher := matching.NewEngine(logger, uow, repos.Rides, repos.Chairs, deps.Ledger, matchLock, cfg.Matching.MaxDraws)

	// set up the JWT manager
	jwtManager, err := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	if err != nil {
		logger.Error(ctx, "jwt_init_failed", "Failed to set up JWT manager", err, nil)
		return err
	}

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	httpHandler := handler.NewDispatchHTTPHandler(handler.Services{
		Rider:   service.NewRiderService(deps),
		Chair:   service.NewChairService(deps),
		Owner:   service.NewOwnerService(deps),
		Notify:  notify,
		Matcher: matcher,
	}, logger, jwtManager, websocket.NewStream(logger, jwtManager, notify, cfg.Notification.RetryAfter), settleTimeout)
	httpHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.DispatchServicePort),
		Handler:           metrics.Middleware(withConcurrencyLimit(maxConcurrent, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      settleTimeout + 5*time.Second, // evaluation waits for payment retries
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch Service started on port %d", cfg.Services.DispatchServicePort),
		map[string]any{"port": cfg.Services.DispatchServicePort, "max_concurrent": maxConcurrent, "storage": storage},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Services.DispatchServicePort})
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "graceful_shutdown", "Shutting down HTTP server", nil)
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})
	return g.Wait()
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
// Websocket streams live for the whole session and are not counted.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
