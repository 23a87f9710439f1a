// Package scheduler owns the persisted recurring search definitions: it
// decides which are due on each tick, fans their queries out through the
// aggregator, records outcomes, and advances next-due timestamps.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/eventbus"
	"tenderwatch/internal/schedule"
	"tenderwatch/internal/source"
	"tenderwatch/internal/storage"
	logx "tenderwatch/pkg/logx"
)

type Config struct {
	// Tick is the due-check cadence. 0 means default (1m).
	Tick time.Duration

	// DefaultMaxResults bounds scheduler-triggered searches (as opposed to
	// interactive ones with a caller-supplied cap). 0 means default (20).
	DefaultMaxResults int
}

const (
	defaultTick       = time.Minute
	defaultMaxResults = 20
)

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.DefaultMaxResults <= 0 {
		c.DefaultMaxResults = defaultMaxResults
	}
	return c
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store storage.Store
	agg   *aggregate.Aggregator
	bus   eventbus.Bus

	c *cron.Cron

	guards *guardSet

	// runCtx outlives the signal context: a shutdown lets in-flight runs
	// finish against their own adapter timeouts instead of aborting
	// mid-write. Stop() waits on wg.
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg Config, store storage.Store, agg *aggregate.Aggregator, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		store:  store,
		agg:    agg,
		bus:    bus,
		guards: newGuardSet(),
	}
}

// Apply updates runtime-tunable settings. A tick change swaps in a fresh
// cron registration under the lock and drains the old one outside it: a
// cron-fired Tick contending for the mutex must not deadlock against the
// drain. Per-definition guards keep the brief overlap from double-dispatch.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	var old *cron.Cron
	if cfg.Tick != s.cfg.Tick && s.c != nil {
		old = s.c
	}
	s.cfg = cfg
	if old != nil {
		s.startCronLocked()
	}
	s.mu.Unlock()
	if old != nil {
		<-old.Stop().Done()
		s.log.Info("scheduler tick changed", logx.Duration("tick", cfg.Tick))
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	s.startCronLocked()
	s.log.Info("scheduler started",
		logx.Duration("tick", s.cfg.Tick),
		logx.Int("default_max_results", s.cfg.DefaultMaxResults))
	return nil
}

func (s *Service) startCronLocked() {
	s.c = cron.New()
	_, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), s.Tick)
	if err != nil {
		// Only possible with a broken tick duration; withDefaults prevents it.
		s.log.Error("tick registration failed", logx.Err(err))
		return
	}
	s.c.Start()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancelRun
	s.cancelRun = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()

	// Let in-flight runs drain to their own timeouts; ctx bounds the wait.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
	}
	s.log.Info("scheduler stopped")
}

// Tick selects all active definitions due now and dispatches them in
// parallel. Definitions already in-flight from a previous, still-running
// tick are skipped, never double-dispatched.
func (s *Service) Tick() {
	s.mu.Lock()
	runCtx := s.runCtx
	maxResults := s.cfg.DefaultMaxResults
	s.mu.Unlock()
	if runCtx == nil {
		return
	}

	now := time.Now()
	lctx, cancel := context.WithTimeout(runCtx, 10*time.Second)
	defs, err := s.store.DueDefinitions(lctx, now)
	cancel()
	if err != nil {
		s.log.Error("due selection failed", logx.Err(err))
		return
	}
	if len(defs) == 0 {
		return
	}
	s.log.Debug("tick", logx.Int("due", len(defs)))

	for _, def := range defs {
		if !s.guards.acquire(def.ID) {
			s.log.Debug("definition still in-flight, skipping", logx.Int64("id", def.ID))
			continue
		}
		s.wg.Add(1)
		go func(def storage.Definition) {
			defer s.wg.Done()
			defer s.guards.release(def.ID)
			s.runDefinition(runCtx, def, maxResults)
		}(def)
	}
}

// runDefinition executes one due definition end to end: aggregate search,
// outcome append, next-due advance. An aggregator failure never deactivates
// the definition; only the outcome records it. A persistence failure leaves
// next-due unadvanced so the next tick retries.
func (s *Service) runDefinition(ctx context.Context, def storage.Definition, maxResults int) {
	started := time.Now()
	log := s.log.With(logx.Int64("definition", def.ID), logx.String("keywords", def.Keywords))

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeRunStarted, Time: started, Data: eventbus.RunEvent{
			DefinitionID: def.ID, Keywords: def.Keywords, Started: started,
		}})
	}

	res, err := s.agg.Run(ctx, source.Query{Keywords: def.Keywords, MaxResults: maxResults})

	outcome := storage.RunOutcome{
		DefinitionID:     def.ID,
		StartedAt:        started,
		FinishedAt:       time.Now(),
		ResultsCount:     len(res.Results),
		SourcesSucceeded: res.SourcesSucceeded,
		SourcesFailed:    res.SourcesFailed,
	}
	switch {
	case err != nil:
		outcome.Error = err.Error()
	case len(res.SourcesSucceeded) == 0 && len(res.SourcesFailed) > 0:
		outcome.Error = fmt.Sprintf("all %d sources failed", len(res.SourcesFailed))
	}

	if s.bus != nil {
		defer func() {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Time: outcome.FinishedAt, Data: eventbus.RunEvent{
				DefinitionID: def.ID, Keywords: def.Keywords, Started: started,
				Results: outcome.ResultsCount, Error: outcome.Error,
			}})
		}()
	}

	if aerr := s.store.AppendOutcome(ctx, outcome); aerr != nil {
		// Next-due stays put so the next tick retries this definition.
		log.Error("outcome append failed, not rescheduled", logx.Err(aerr))
		return
	}

	next, nerr := schedule.Next(def.Frequency, def.Custom, started)
	if nerr != nil {
		// A definition this broken should have been rejected at creation.
		log.Error("next execution computation failed", logx.Err(nerr))
		return
	}

	// The atomic active-checked update is what makes a concurrent user
	// deactivate/delete win over this run's completion.
	applied, uerr := s.store.UpdateAfterRun(ctx, def.ID, started, next)
	switch {
	case uerr != nil:
		log.Error("definition update failed, will retry next tick", logx.Err(uerr))
	case !applied:
		log.Debug("definition deactivated or deleted mid-run, not rescheduled")
	default:
		log.Info("run complete",
			logx.Int("results", outcome.ResultsCount),
			logx.Strings("failed_sources", outcome.SourcesFailed),
			logx.Time("next", next))
	}
}
