package mockupstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Config holds the mock-upstream command settings.
type Config struct {
	Addr      string        // listen address
	Token     string        // bearer token required on scoring routes
	VerifyURL string        // leaderboard service to check, empty to skip
	Timeout   time.Duration // verification request timeout
	Verbose   bool
}

// Run serves DefaultFixtures on cfg.Addr until ctx is done. With VerifyURL set
// it instead checks the running leaderboard service once and returns.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("mock-upstream")

	if cfg.VerifyURL != "" {
		report, err := Verify(ctx, cfg.VerifyURL, DefaultFixtures(), cfg.Timeout)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		log.Info(ctx, "leaderboard verified",
			logger.Int("entries", report.Entries),
			logger.String("leader", report.Leader),
			logger.Float64("leader_total", report.LeaderTotal),
		)
		return nil
	}

	srv := NewServer(DefaultFixtures(), WithToken(cfg.Token), WithVerbose(cfg.Verbose), WithServerLogger(log))
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "serving fixtures", logger.String("addr", cfg.Addr), logger.Bool("auth", cfg.Token != ""))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(context.Background(), "stopped", logger.Int64("requests", srv.Requests()))
	return nil
}

// ShowHelp prints usage information for the mock upstream tool.
func ShowHelp() {
	os.Stdout.WriteString(`CFCC Mock Upstream
==================

Serves deterministic contest data with the scoring service and registry
wire contracts, so the leaderboard can run without the real services.

Usage:
  go run ./cmd/mock-upstream [options]

Options:
  -addr string
        Listen address (default ":9090")
  -token string
        Bearer token required on scoring routes (default: none)
  -verify string
        Check a running leaderboard service at this base URL and exit
  -timeout duration
        Verification request timeout (default 10s)
  -verbose
        Log every request
  -help
        Show this help message

Routes:
  GET /{round}                 round1, round2, team metadata
  GET /{round}/candidates      ?limit=&offset=
  GET /participants.json
  GET /teams.json
  GET /games.json

Examples:
  # Serve fixtures and point the leaderboard at them
  go run ./cmd/mock-upstream -token dev
  CFCC_TOKEN=dev CFCC_ROUND1_URL=http://localhost:9090/round1 go run ./cmd

  # Verify the overall board once both are up
  go run ./cmd/mock-upstream -verify http://localhost:8080
`)
}
