// Package app wires configuration, storage, sources, the aggregator, the
// scheduler and the stats tracker into one lifecycle, and exposes the
// operations consumed by the authenticated HTTP layer (which lives outside
// this repo).
package app

import (
	"context"
	"fmt"
	"time"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/config"
	"tenderwatch/internal/eventbus"
	"tenderwatch/internal/scheduler"
	"tenderwatch/internal/source"
	"tenderwatch/internal/stats"
	"tenderwatch/internal/storage"
	logx "tenderwatch/pkg/logx"
)

const defaultInteractiveCap = 50

type App struct {
	manager *config.Manager
	logSvc  *logx.Service
	log     logx.Logger

	store    storage.Store
	registry *source.Registry
	agg      *aggregate.Aggregator
	bus      eventbus.Bus
	sched    *scheduler.Service
	stats    *stats.Tracker

	// interactiveCap bounds caller-supplied max results.
	interactiveCap int
}

func New(cfgPath string) (*App, error) {
	manager := config.NewManager(cfgPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))
	manager.SetLogger(log)
	manager.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		_, err := schedulerConfig(cfg.Scheduler)
		if err != nil {
			return err
		}
		_, err = aggregateConfig(cfg.Aggregator)
		return err
	})

	store, err := openStore(cfg.Storage, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registry, err := buildRegistry(cfg.Sources)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	aggCfg, err := aggregateConfig(cfg.Aggregator)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	agg := aggregate.New(registry, aggCfg, log)

	schedCfg, err := schedulerConfig(cfg.Scheduler)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	sched := scheduler.New(schedCfg, store, agg, bus, log)

	interactiveCap := cfg.Aggregator.MaxResults
	if interactiveCap <= 0 {
		interactiveCap = defaultInteractiveCap
	}

	return &App{
		manager:        manager,
		logSvc:         logSvc,
		log:            log,
		store:          store,
		registry:       registry,
		agg:            agg,
		bus:            bus,
		sched:          sched,
		stats:          stats.New(store, registry, log),
		interactiveCap: interactiveCap,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.manager.Watch(ctx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()
	go a.reloadLoop(ctx)

	a.log.Info("tenderwatch started", logx.Int("sources", a.registry.Len()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("tenderwatch stopped")
	return a.logSvc.Close()
}

// Bus exposes run lifecycle events for outward delivery surfaces.
func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) reloadLoop(ctx context.Context) {
	ch := a.manager.Subscribe(4)
	defer a.manager.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logxConfig(cfg.Logging))
			// The validator already vetted durations; errors here are stale config.
			if schedCfg, err := schedulerConfig(cfg.Scheduler); err == nil {
				a.sched.Apply(schedCfg)
			}
			a.log.Info("config reloaded")
		}
	}
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig(c.File),
	}
}

func openStore(c config.StorageConfig, log logx.Logger) (storage.Store, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	if err != nil {
		return nil, err
	}
	path := c.Path
	if path == "" {
		path = "./tenderwatch.db"
	}
	return storage.Open(storage.Config{Driver: c.Driver, Path: path, BusyTimeout: busy}, log)
}

func aggregateConfig(c config.AggregatorConfig) (aggregate.Config, error) {
	timeout, err := config.ParseDurationField("aggregator.adapter_timeout", c.AdapterTimeout)
	if err != nil {
		return aggregate.Config{}, err
	}
	return aggregate.Config{AdapterTimeout: timeout}, nil
}

func schedulerConfig(c config.SchedulerConfig) (scheduler.Config, error) {
	tick, err := config.ParseDurationOrDefault("scheduler.tick", c.Tick, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{Tick: tick, DefaultMaxResults: c.DefaultMaxResults}, nil
}

// adapterFactories maps the fixed, known adapter set. New sources add a
// factory line, nothing else.
var adapterFactories = map[string]func(source.Options) source.Adapter{
	"ted":         func(o source.Options) source.Adapter { return source.NewTED(o) },
	"etendering":  func(o source.Options) source.Adapter { return source.NewETendering(o) },
	"openprocure": func(o source.Options) source.Adapter { return source.NewOpenProcure(o) },
}

// adapterOrder keeps registration (and so ranking tie-break) order stable.
var adapterOrder = []string{"ted", "etendering", "openprocure"}

func buildRegistry(c config.SourcesConfig) (*source.Registry, error) {
	enabled := map[string]bool{}
	if len(c.Enabled) == 0 {
		for name := range adapterFactories {
			enabled[name] = true
		}
	} else {
		for _, name := range c.Enabled {
			if _, ok := adapterFactories[name]; !ok {
				return nil, fmt.Errorf("sources.enabled: unknown source %q", name)
			}
			enabled[name] = true
		}
	}

	registry := source.NewRegistry()
	for _, name := range adapterOrder {
		if !enabled[name] {
			continue
		}
		opts := source.Options{RatePerSec: c.RatePerSec}
		if c.BaseURLs != nil {
			opts.BaseURL = c.BaseURLs[name]
		}
		registry.Register(adapterFactories[name](opts))
	}
	return registry, nil
}
