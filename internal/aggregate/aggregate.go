// Package aggregate fans a search query out to every registered source
// adapter, merges and ranks whatever comes back within the per-adapter
// timeout, and reports per-source success/failure.
//
// An aggregate call never fails because adapters failed: zero successful
// adapters still yields an empty, non-error result with every source listed
// as failed.
package aggregate

import (
	"context"
	"sync"
	"time"

	"tenderwatch/internal/source"
	logx "tenderwatch/pkg/logx"
)

type Config struct {
	// AdapterTimeout bounds each adapter's Search call. 0 means default (10s).
	AdapterTimeout time.Duration
}

const defaultAdapterTimeout = 10 * time.Second

// Result is the merged outcome of one aggregate call.
type Result struct {
	Results          []source.Result
	SourcesSucceeded []string
	SourcesFailed    []string
}

type Aggregator struct {
	registry *source.Registry
	timeout  time.Duration
	log      logx.Logger
}

func New(registry *source.Registry, cfg Config, log logx.Logger) *Aggregator {
	timeout := cfg.AdapterTimeout
	if timeout <= 0 {
		timeout = defaultAdapterTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Aggregator{registry: registry, timeout: timeout, log: log}
}

type adapterOutcome struct {
	idx     int
	name    string
	results []source.Result
	err     error
}

// Run validates the query, dispatches it to all adapters concurrently and
// returns the merged, ranked, globally-truncated result.
//
// The only error Run returns is a ValidationError; adapter failures are
// reported in SourcesFailed.
func (a *Aggregator) Run(ctx context.Context, query source.Query) (Result, error) {
	query, ok := query.Normalize()
	if !ok {
		return Result{}, source.ErrEmptyKeywords
	}
	if query.MaxResults <= 0 {
		return Result{}, source.Validationf("max results must be positive, got %d", query.MaxResults)
	}

	adapters := a.registry.Adapters()
	outcomes := make([]adapterOutcome, len(adapters))

	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(idx int, ad source.Adapter) {
			defer wg.Done()
			outcomes[idx] = a.searchOne(ctx, idx, ad, query)
		}(i, ad)
	}
	wg.Wait()

	out := Result{}
	merged := newMerger()
	for _, oc := range outcomes {
		if oc.err != nil {
			out.SourcesFailed = append(out.SourcesFailed, oc.name)
			a.log.Warn("source failed",
				logx.String("source", oc.name),
				logx.String("kind", source.KindOf(oc.err).String()),
				logx.Err(oc.err))
			continue
		}
		out.SourcesSucceeded = append(out.SourcesSucceeded, oc.name)
		merged.add(oc.idx, oc.results)
	}

	out.Results = merged.ranked(query.MaxResults)
	a.log.Debug("aggregate done",
		logx.String("keywords", query.Keywords),
		logx.Int("results", len(out.Results)),
		logx.Int("sources_ok", len(out.SourcesSucceeded)),
		logx.Int("sources_failed", len(out.SourcesFailed)))
	return out, nil
}

// searchOne runs one adapter bounded by the per-adapter timeout. An adapter
// that ignores its context deadline still cannot delay the aggregate call:
// the wait is on the timeout, and any late partial output is discarded.
func (a *Aggregator) searchOne(ctx context.Context, idx int, ad source.Adapter, query source.Query) adapterOutcome {
	actx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan adapterOutcome, 1)
	go func() {
		rs, err := ad.Search(actx, query)
		done <- adapterOutcome{idx: idx, name: ad.Name(), results: rs, err: err}
	}()

	select {
	case oc := <-done:
		return oc
	case <-actx.Done():
		return adapterOutcome{idx: idx, name: ad.Name(), err: source.Unreachable(ad.Name(), actx.Err())}
	}
}
