// Package bootstrap assembles the engine from configuration for the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/store/notify"
	"github.com/warp/attendance-engine/store/sqlite"
)

const serviceName = "attendance-engine"

// Runtime is a fully wired engine.
type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Handler *api.Handler

	watcher   *attendance.Watcher
	scheduler *api.ReconciliationScheduler
	ingest    *ingest.Worker
	closers   []io.Closer
	closeOnce sync.Once
}

// NewLogger builds the JSON logger used by every component.
func NewLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.ParseLogLevel()
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("service", serviceName)
}

// NewRuntime opens the store and notification transport and wires every
// component. Close releases what it opened.
func NewRuntime(ctx context.Context, cfg config.Config) (*Runtime, error) {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	schedule, err := cfg.BuildSchedule()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: logger, closers: []io.Closer{db}}

	var (
		pub notify.Publisher
		sub attendance.Subscriber
	)
	if cfg.RedisURL != "" {
		client, err := notify.Connect(ctx, cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		r := notify.NewRedis(client, notify.DefaultChannel, logger)
		pub, sub = r, r
		logger.InfoContext(ctx, "change notifications over redis", "channel", notify.DefaultChannel)
	} else {
		hub := notify.NewHub()
		pub, sub = hub, hub
		logger.InfoContext(ctx, "change notifications in process")
	}

	repo := attendance.NewRepository(notify.Wrap(db, pub, logger))
	repo.Timeout = cfg.StoreTimeout

	rt.Handler = api.NewHandler(repo, schedule, logger)

	rt.watcher = attendance.NewWatcher(rt.Handler.Updater, sub, logger)
	rt.watcher.RegisteredOnly = true

	rt.scheduler = api.NewReconciliationScheduler(rt.Handler.Cycle(), logger)
	rt.scheduler.CheckInterval = cfg.ReconcileInterval
	rt.scheduler.Enabled = cfg.SchedulerEnabled
	rt.Handler.Scheduler = rt.scheduler

	if cfg.Kafka.Enabled() {
		consumer, err := ingest.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic})
		if err != nil {
			logger.WarnContext(ctx, "kafka ingestion disabled", "error", err)
		} else {
			rt.closers = append(rt.closers, consumer)
			rt.ingest = ingest.NewWorker(logger, consumer, repo, time.Second)
		}
	}
	return rt, nil
}

// Close releases the store and transports. It is safe to call twice.
func (rt *Runtime) Close() {
	rt.closeOnce.Do(func() {
		for i := len(rt.closers) - 1; i >= 0; i-- {
			_ = rt.closers[i].Close()
		}
	})
}

// RunServer serves HTTP and runs the background loops until SIGINT/SIGTERM.
func (rt *Runtime) RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", rt.Config.HTTPPort),
		Handler:      api.NewRouter(rt.Handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rt.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scan watcher: %w", err)
		}
	}()
	if rt.ingest != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rt.ingest.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("kafka ingestion: %w", err)
			}
		}()
	}
	go func() {
		rt.Logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	rt.scheduler.Start()

	var runErr error
	select {
	case <-ctx.Done():
		rt.Logger.Info("shutting down")
	case runErr = <-errCh:
		rt.Logger.Error("runtime failure", "error", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.Logger.Error("server forced to shutdown", "error", err)
	}
	rt.scheduler.Stop()
	wg.Wait()
	rt.Close()

	rt.Logger.Info("server stopped")
	return runErr
}

// RunOnce runs one correction cycle and returns its report.
func (rt *Runtime) RunOnce(ctx context.Context) (attendance.CycleReport, error) {
	return rt.Handler.Cycle().Run(ctx)
}
