package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/mockupstream"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

const defaultVerifyTimeout = 10 * time.Second

func main() {
	var (
		addr    = flag.String("addr", ":9090", "Listen address")
		token   = flag.String("token", "", "Bearer token required on scoring routes")
		verify  = flag.String("verify", "", "Check a running leaderboard service at this base URL and exit")
		timeout = flag.Duration("timeout", defaultVerifyTimeout, "Verification request timeout")
		verbose = flag.Bool("verbose", false, "Log every request")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		mockupstream.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &mockupstream.Config{
		Addr:      *addr,
		Token:     *token,
		VerifyURL: *verify,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}
	if err := mockupstream.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("mock upstream failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
