package paymentgateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"isuride/internal/general/config"
	"isuride/internal/general/logger"
	"isuride/internal/software/paymentmock"

	"golang.org/x/sync/errgroup"
)

// Run serves the mock payment gateway until ctx is cancelled. failRate is the
// share of POST /payments answered with an ambiguous 500.
func Run(ctx context.Context, failRate float64) error {
	logger := logger.New("payment-gateway")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(config.Path())
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.PaymentGatewayPort),
		Handler:           paymentmock.NewServer(logger, failRate).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Payment Gateway started on port %d", cfg.Services.PaymentGatewayPort),
		map[string]any{"port": cfg.Services.PaymentGatewayPort, "fail_rate": failRate},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, nil)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})
	return g.Wait()
}
