package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"syncworker/internal/config"
	"syncworker/internal/executor"
	"syncworker/internal/fetch"
	"syncworker/internal/metrics"
	"syncworker/internal/notify"
	"syncworker/internal/pipeline"
	"syncworker/internal/scheduler"
	"syncworker/internal/store"
	"syncworker/internal/store/local"
	"syncworker/internal/store/primary"
)

// App holds what every command needs: config, logging, metrics and the
// submitter side of the scheduler. Worker-only pieces are built by NewWorker.
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics

	Scheduler *scheduler.Client
	Watcher   *scheduler.Watcher

	inspector *asynq.Inspector
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	configureLogging(cfg)

	app := &App{Config: cfg, Metrics: metrics.New()}
	if err := app.initScheduler(); err != nil {
		app.Close()
		return nil, err
	}
	log.Debug("Application initialization complete.")
	return app, nil
}

// RedisOpt is the connection used by clients, inspectors and worker servers.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// Queues lists the queues a job may be routed to, expedited first.
func (a *App) Queues() []string {
	return []string{a.Config.Scheduler.ExpeditedQueue, a.Config.Scheduler.DefaultQueue}
}

// Ping checks that Redis is reachable.
func (a *App) Ping() error {
	if _, err := a.inspector.Queues(); err != nil {
		return fmt.Errorf("redis %s: %w", a.Config.Redis.Address, err)
	}
	return nil
}

func (a *App) Close() {
	if a.Scheduler != nil {
		if err := a.Scheduler.Close(); err != nil {
			log.Printf("Error closing scheduler client: %v", err)
		}
	}
	if a.inspector != nil {
		a.inspector.Close()
	}
}

// --- Private Helper Methods ---

func (a *App) initScheduler() error {
	cfg := a.Config.Scheduler
	a.Scheduler = scheduler.NewClient(asynq.NewClient(a.RedisOpt()), scheduler.ClientOptions{
		ExpeditedQueue: cfg.ExpeditedQueue,
		DefaultQueue:   cfg.DefaultQueue,
		MaxRetry:       cfg.MaxRetry,
		Retention:      cfg.Retention,
		ExpeditedRate:  cfg.ExpeditedRate,
		ExpeditedBurst: cfg.ExpeditedBurst,
	}, a.Metrics.ObserveSubmission)

	a.inspector = asynq.NewInspector(a.RedisOpt())
	a.Watcher = scheduler.NewWatcher(a.inspector, cfg.WatchInterval)
	return nil
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// OpenRecordStore picks PostgreSQL for postgres:// DSNs and SQLite otherwise.
func OpenRecordStore(ctx context.Context, dsn string) (store.RecordStore, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := primary.NewPrimaryStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.Contains(dsn, "://") && !strings.HasPrefix(dsn, "sqlite://"):
		return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedDSN, dsn)
	}
	s, err := local.Open(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Worker is the isolated execution side: an Asynq server running the
// executor for every sync task.
type Worker struct {
	Server  *asynq.Server
	Mux     *asynq.ServeMux
	Store   store.RecordStore
	Handler *scheduler.Handler
}

// NewWorker assembles store, fetcher, pipeline, notification sink, executor
// and the Asynq server. The notification channel is created here, once per
// process, before any attempt runs.
func (a *App) NewWorker(ctx context.Context) (*Worker, error) {
	cfg := a.Config
	if err := cfg.ValidateWorker(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	rs, err := OpenRecordStore(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init record store: %w", err)
	}

	fetcher, err := fetch.New(fetch.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Token:     cfg.Backend.Token,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
	}, rs)
	if err != nil {
		rs.Close()
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	sink := notify.NewLogSink(log.StandardLogger())
	if err := notify.EnsureChannel(sink, notify.SyncChannel); err != nil {
		rs.Close()
		return nil, err
	}

	exec := executor.New(
		pipeline.New(fetcher, pipeline.WithStageObserver(a.Metrics.ObserveStage)),
		sink,
		executor.WithResultObserver(a.Metrics.ObserveAttempt),
	)
	handler := scheduler.NewHandler(exec, scheduler.NewNetworkChecker(cfg.Constraints.NetworkProbe, cfg.Constraints.ProbeTimeout))

	retry := scheduler.RetryPolicy{
		Ceiling:        cfg.Scheduler.BackoffCeiling,
		Floor:          cfg.Scheduler.BackoffFloor,
		ConstraintPoll: cfg.Scheduler.ConstraintPoll,
	}
	srv := asynq.NewServer(a.RedisOpt(), asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          cfg.Worker.Queues,
		StrictPriority:  cfg.Worker.StrictPriority,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		RetryDelayFunc:  retry.RetryDelayFunc(),
		IsFailure:       scheduler.IsFailure,
		Logger:          log.StandardLogger(),
		LogLevel:        asynqLogLevel(log.GetLevel()),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			log.WithFields(log.Fields{"job_id": id, "type": task.Type()}).WithError(err).Warn("sync task did not succeed")
		}),
	})

	mux := asynq.NewServeMux()
	handler.Register(mux)

	return &Worker{Server: srv, Mux: mux, Store: rs, Handler: handler}, nil
}

func asynqLogLevel(l log.Level) asynq.LogLevel {
	switch {
	case l >= log.DebugLevel:
		return asynq.DebugLevel
	case l >= log.InfoLevel:
		return asynq.InfoLevel
	case l >= log.WarnLevel:
		return asynq.WarnLevel
	case l >= log.ErrorLevel:
		return asynq.ErrorLevel
	}
	return asynq.FatalLevel
}
