package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	dispatchservice "isuride/cmd/dispatch_service"
	matcherservice "isuride/cmd/matcher_service"
	paymentgateway "isuride/cmd/payment_gateway"
	"isuride/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the service specified by the mode flag
	switch mode {

	case cli.ModeDispatch:
		fs := flag.NewFlagSet(cli.ModeDispatch, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests to process")
		storage := fs.String("storage", dispatchservice.StoragePostgres, "Storage backend: postgres | memory")
		cli.AttachUsage(fs, cli.ModeDispatch)

		parseOrExit(fs, svcArgs)
		if *maxConc < 1 {
			usageError(fs, "--max-concurrent must be >= 1")
		}
		if *storage != dispatchservice.StoragePostgres && *storage != dispatchservice.StorageMemory {
			usageError(fs, "--storage must be postgres or memory")
		}
		if err := dispatchservice.Run(ctx, *maxConc, *storage); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeMatcher:
		fs := flag.NewFlagSet(cli.ModeMatcher, flag.ContinueOnError)
		interval := fs.Duration("interval", 0, "Matching interval (default from config)")
		prefetch := fs.Int("prefetch", 8, "RabbitMQ prefetch count for the nudge consumer")
		cli.AttachUsage(fs, cli.ModeMatcher)

		parseOrExit(fs, svcArgs)
		if *interval < 0 {
			usageError(fs, "--interval must not be negative")
		}
		if *prefetch <= 0 {
			usageError(fs, "--prefetch must be > 0")
		}
		if err := matcherservice.Run(ctx, *interval, *prefetch); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeGateway:
		fs := flag.NewFlagSet(cli.ModeGateway, flag.ContinueOnError)
		failRate := fs.Float64("fail-rate", 0, "Share (0..1) of payments answered with an ambiguous 500")
		cli.AttachUsage(fs, cli.ModeGateway)

		parseOrExit(fs, svcArgs)
		if *failRate < 0 || *failRate > 1 {
			usageError(fs, "--fail-rate must be in 0..1")
		}
		if err := paymentgateway.Run(ctx, *failRate); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func usageError(fs *flag.FlagSet, msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	fs.Usage()
	os.Exit(2)
}
