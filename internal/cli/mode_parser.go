package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeDispatch = "dispatch-service"
	ModeMatcher  = "matcher-service"
	ModeGateway  = "payment-gateway"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeDispatch, "dispatch", "d":
		return ModeDispatch, true
	case ModeMatcher, "matcher", "m":
		return ModeMatcher, true
	case ModeGateway, "gateway", "pg":
		return ModeGateway, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `dispatch --storage=memory`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}
	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./isuride --mode=<service> [flags]

Services (modes):
  dispatch-service     HTTP API for riders, chairs and owners, notification streams, /metrics
  matcher-service      Periodic matching trigger, nudged by ride.status.matching events
  payment-gateway      Local mock of the payment gateway

Examples:
  ./isuride --mode=dispatch-service --max-concurrent=150 --storage=postgres
  ./isuride --mode=matcher-service --interval=500ms --prefetch=8
  ./isuride --mode=payment-gateway --fail-rate=0.2`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./isuride --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
