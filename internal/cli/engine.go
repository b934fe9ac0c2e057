package cli

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/meridianbi/meridian/internal/config"
	"github.com/meridianbi/meridian/internal/logger"
	"github.com/meridianbi/meridian/internal/tracing"
	"github.com/meridianbi/meridian/pkg/bitools"
	"github.com/meridianbi/meridian/pkg/checkpoint"
	"github.com/meridianbi/meridian/pkg/provider"
	"github.com/meridianbi/meridian/pkg/react"
	"github.com/meridianbi/meridian/pkg/runqueue"
	"github.com/meridianbi/meridian/pkg/swarm"
	"github.com/meridianbi/meridian/pkg/tool"
)

// engine is the process composition root: it owns every long-lived
// collaborator and tears them down in reverse order.
type engine struct {
	cfg      *config.Config
	log      *logger.Logger
	quota    *provider.QuotaTracker
	selector *provider.Selector
	registry *tool.Registry
	store    checkpoint.Store
	queue    *runqueue.Queue
	react    *react.Executor
	swarm    *swarm.Executor
	reset    *provider.ResetScheduler
	watcher  *config.Watcher
	db       *sql.DB
}

// buildEngine loads config and wires the full execution stack
func buildEngine() (*engine, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lg, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	zl := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("meridian"); err != nil {
		zl.Warn().Err(err).Msg("Tracing init failed, continuing without spans")
	}

	providers, err := provider.BuildProviders(cfg.Providers)
	if err != nil {
		return nil, err
	}
	quota := provider.NewQuotaTracker(cfg.Providers)
	cooldown := time.Duration(cfg.Engine.CooldownMinutes) * time.Minute
	selector, err := provider.NewSelector(providers, quota,
		provider.WithCooldown(cooldown),
		provider.WithLogger(lg.GetZerolog()),
	)
	if err != nil {
		return nil, err
	}

	reset, err := provider.NewResetScheduler(quota)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule quota resets: %w", err)
	}
	reset.Start()

	// Hot-reload daily limits on config edits. Provider identity changes
	// still require a restart; only limits apply live.
	watcher, err := config.NewWatcher(loader, func(newCfg *config.Config) {
		quota.UpdateLimits(newCfg.Providers)
	})
	if err != nil {
		zl.Warn().Err(err).Msg("Config watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		zl.Warn().Err(err).Msg("Config watcher failed to start")
		watcher = nil
	}

	registry := tool.NewRegistry()

	var db *sql.DB
	if cfg.Warehouse.DSN != "" {
		db, err = bitools.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN)
		if err != nil {
			return nil, err
		}
	}
	if err := bitools.Register(registry, bitools.Options{DB: db}); err != nil {
		return nil, err
	}

	var store checkpoint.Store
	if cfg.Checkpoints.Enabled {
		store, err = checkpoint.NewFileStore(cfg.Checkpoints.Dir)
		if err != nil {
			return nil, err
		}
	} else {
		store = checkpoint.NewMemoryStore()
	}

	queue := runqueue.New()

	toolTimeout := time.Duration(cfg.Engine.ToolTimeoutSec) * time.Second

	reactExec := react.NewExecutor(selector, registry,
		react.WithCheckpoints(store),
		react.WithQueue(queue),
		react.WithConfig(react.Config{
			MaxIterations:      cfg.Engine.MaxIterations,
			ToolTimeout:        toolTimeout,
			MinRetryConfidence: cfg.Engine.MinRetryConfidence,
		}),
	)

	swarmExec := swarm.NewExecutor(selector, registry,
		swarm.WithConfig(swarm.Config{
			Concurrency:          cfg.Engine.SwarmConcurrency,
			SynthesisResultLimit: cfg.Engine.SynthesisResultLimit,
			TaskTimeout:          toolTimeout,
		}),
	)

	return &engine{
		cfg:      cfg,
		log:      lg,
		quota:    quota,
		selector: selector,
		registry: registry,
		store:    store,
		queue:    queue,
		react:    reactExec,
		swarm:    swarmExec,
		reset:    reset,
		watcher:  watcher,
		db:       db,
	}, nil
}

// close tears the engine down in reverse wiring order
func (e *engine) close() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.reset != nil {
		e.reset.Stop()
	}
	if e.queue != nil {
		e.queue.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
	if e.log != nil {
		e.log.Close()
	}
}
