// Package stats is the read-side projection over persisted definitions and
// run history. It owns no state of its own beyond a short-lived probe cache.
package stats

import (
	"context"
	"sync"
	"time"

	"tenderwatch/internal/schedule"
	"tenderwatch/internal/source"
	"tenderwatch/internal/storage"
	logx "tenderwatch/pkg/logx"
)

// probeCacheTTL keeps siteStatus cheap under dashboard polling.
const probeCacheTTL = 30 * time.Second

const recentRunWindow = 50

// SiteStatus is one adapter's probed liveness.
type SiteStatus struct {
	Name        string
	Description string
	Online      bool
	Latency     time.Duration
}

// RunSummary condenses the recent outcome history.
type RunSummary struct {
	Runs     int
	Failures int
	LastRun  time.Time
}

// Summary is the scheduled-search statistics surface.
type Summary struct {
	Definitions    storage.Counts
	ByFrequency    map[schedule.Frequency]int
	RecentRuns     RunSummary
	SourcesOnline  int
	SourcesOffline int
}

type Tracker struct {
	store    storage.Store
	registry *source.Registry
	log      logx.Logger

	pmu     sync.Mutex
	probeAt time.Time
	probed  []SiteStatus
}

func New(store storage.Store, registry *source.Registry, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{store: store, registry: registry, log: log}
}

// Summary derives the definition census, recent run summary and source
// health counts. It reflects the latest persisted state at call time.
func (t *Tracker) Summary(ctx context.Context) (Summary, error) {
	counts, err := t.store.DefinitionCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	byFreq, err := t.store.CountsByFrequency(ctx)
	if err != nil {
		return Summary{}, err
	}
	outcomes, err := t.store.RecentOutcomes(ctx, recentRunWindow)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Definitions: counts, ByFrequency: byFreq}
	for _, o := range outcomes {
		sum.RecentRuns.Runs++
		if o.Error != "" {
			sum.RecentRuns.Failures++
		}
		if o.StartedAt.After(sum.RecentRuns.LastRun) {
			sum.RecentRuns.LastRun = o.StartedAt
		}
	}

	for _, st := range t.SiteStatus(ctx) {
		if st.Online {
			sum.SourcesOnline++
		} else {
			sum.SourcesOffline++
		}
	}
	return sum, nil
}

// SiteStatus probes every adapter concurrently. Probe results are cached
// briefly; a probe never runs a full search and is bounded by the adapters'
// own probe timeout.
func (t *Tracker) SiteStatus(ctx context.Context) []SiteStatus {
	t.pmu.Lock()
	if time.Since(t.probeAt) < probeCacheTTL && t.probed != nil {
		cached := make([]SiteStatus, len(t.probed))
		copy(cached, t.probed)
		t.pmu.Unlock()
		return cached
	}
	t.pmu.Unlock()

	adapters := t.registry.Adapters()
	statuses := make([]SiteStatus, len(adapters))

	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(idx int, ad source.Adapter) {
			defer wg.Done()
			st := SiteStatus{Name: ad.Name(), Description: ad.Describe()}
			probed, err := ad.Probe(ctx)
			if err != nil {
				t.log.Debug("probe failed", logx.String("source", ad.Name()), logx.Err(err))
			} else {
				st.Online = probed.Online
				st.Latency = probed.Latency
			}
			statuses[idx] = st
		}(i, ad)
	}
	wg.Wait()

	t.pmu.Lock()
	t.probeAt = time.Now()
	t.probed = statuses
	t.pmu.Unlock()

	out := make([]SiteStatus, len(statuses))
	copy(out, statuses)
	return out
}
