package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/reviewrank/internal/adapters/db"
	"github.com/okian/reviewrank/internal/adapters/http/api"
	"github.com/okian/reviewrank/internal/adapters/http/swagger"
	"github.com/okian/reviewrank/internal/adapters/platform"
	"github.com/okian/reviewrank/internal/adapters/repository"
	app "github.com/okian/reviewrank/internal/app"
	"github.com/okian/reviewrank/internal/config"
	"github.com/okian/reviewrank/internal/domain/normalize"
	"github.com/okian/reviewrank/pkg/logger"
	"github.com/okian/reviewrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 30 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6

	platformBaseDelay = 500 * time.Millisecond
	platformMaxDelay  = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't configured yet
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFile(cfg.LogFile)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	}()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// server bundles the wired components of one process.
type server struct {
	db  *sql.DB
	svc *app.Service
	mux *http.ServeMux
}

// newServer opens storage and wires the service and HTTP routes from cfg.
func newServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*server, error) {
	conn, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithPartitions(cfg.AggregatePartitions),
		app.WithDuplicateThreshold(cfg.DuplicateThreshold),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	}

	if cfg.AliasTableFile != "" {
		table, err := normalize.LoadAliasFile(cfg.AliasTableFile)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		opts = append(opts, app.WithNormalizer(normalize.New(normalize.WithAliases(table))))
	}

	if cfg.PlatformBaseURL != "" {
		client, err := platform.New(cfg.PlatformBaseURL,
			platform.WithAPIKey(cfg.PlatformAPIKey),
			platform.WithPageSize(cfg.PlatformPageSize),
			platform.WithRequestDelay(cfg.PlatformRequestDelay()),
			platform.WithRetries(cfg.PlatformMaxRetries, platformBaseDelay, platformMaxDelay),
			platform.WithLogger(log.Named("platform")),
		)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		opts = append(opts,
			app.WithFetcher(client),
			app.WithSchedule(cfg.SyncInterval(), cfg.SyncScoreSets),
		)
	}

	svc := app.New(repository.NewSQLRowStore(conn), repository.NewSQLEntryStore(conn), opts...)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)

	return &server{db: conn, svc: svc, mux: mux}, nil
}

func (s *server) Close() error {
	return s.db.Close()
}

// run serves HTTP until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	s, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, s.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = s.svc.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := s.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue and leaderboard gauges.
			_ = svc.GetStats(ctx)
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
