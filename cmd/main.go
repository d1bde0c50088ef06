package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/adapters/http/api"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/adapters/http/swagger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/adapters/upstream"
	app "github.com/Chea-Ilong/CFCC-Leaderboard/internal/app"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/config"
	"github.com/Chea-Ilong/CFCC-Leaderboard/internal/domain/board"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Metrics live in a custom registry; keep the default one free of Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricOpts, err := metricsOptions(cfg)
	if err != nil {
		loggerInstance.Error(ctx, "invalid metrics configuration", logger.Error(err))
		return
	}
	metrics.Configure(metricOpts...)

	opts, err := serviceOptions(cfg)
	if err != nil {
		loggerInstance.Error(ctx, "invalid configuration", logger.Error(err))
		return
	}
	svc := app.New(append(opts, app.WithLogger(loggerInstance))...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
	go startServiceMetricsUpdater(ctx, svc, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config) ([]app.Option, error) {
	policy, err := upstream.ParseTeamScorePolicy(cfg.TeamScorePolicy)
	if err != nil {
		return nil, err
	}
	return []app.Option{
		app.WithRoundURLs(cfg.Round1URL, cfg.Round2URL, cfg.TeamRoundURL),
		app.WithRegistryURL(cfg.RegistryURL),
		app.WithToken(cfg.Token),
		app.WithRequestTimeout(cfg.RequestTimeout()),
		app.WithRefreshIntervals(cfg.Round1Refresh(), cfg.Round2Refresh(), cfg.LiveUpdateInterval()),
		app.WithPageSizes(cfg.ParticipantsPerPage, cfg.MaxParticipantsPerPage),
		app.WithTeamScorePolicy(policy),
		app.WithDefaultGroup(cfg.DefaultGroup),
	}, nil
}

// metricsOptions maps configuration onto metrics manager options.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	buckets, err := cfg.HistogramBuckets()
	if err != nil {
		return nil, err
	}
	labels, err := cfg.ConstLabels()
	if err != nil {
		return nil, err
	}
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithHistogramBuckets(buckets),
		metrics.WithCustomLabels(labels),
	}, nil
}

// newHandler registers the API and docs routes and wraps them with request
// ids and CORS.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, l logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return api.Chain(mux, l.Named("http"), cfg.AllowedOrigins())
}

// startSystemMetricsUpdater updates system metrics every interval until ctx is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater republishes board state every interval until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics republishes board staleness from the service stats.
func updateServiceMetrics(svc *app.Service) {
	boards, ok := svc.GetStats()["boards"].([]board.Info)
	if !ok {
		return
	}
	for _, b := range boards {
		metrics.UpdateBoardStale(b.Board, b.Stale)
		if b.UpdatedAt != nil {
			metrics.UpdateBoardSnapshot(b.Board, b.Entries, *b.UpdatedAt)
		}
	}
}
