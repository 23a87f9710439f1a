package aggregate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tenderwatch/internal/source"
	logx "tenderwatch/pkg/logx"
)

// fakeAdapter is a scripted source: fixed results, optional error, optional
// blocking until the context expires.
type fakeAdapter struct {
	name    string
	results []source.Result
	err     error
	hang    bool
	calls   atomic.Int32
}

func (f *fakeAdapter) Name() string     { return f.name }
func (f *fakeAdapter) Describe() string { return "fake " + f.name }

func (f *fakeAdapter) Search(ctx context.Context, query source.Query) ([]source.Result, error) {
	f.calls.Add(1)
	if f.hang {
		<-ctx.Done()
		return nil, source.Unreachable(f.name, ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	rs := f.results
	if len(rs) > query.MaxResults {
		rs = rs[:query.MaxResults]
	}
	out := make([]source.Result, len(rs))
	copy(out, rs)
	return out, nil
}

func (f *fakeAdapter) Probe(context.Context) (source.Status, error) {
	return source.Status{Online: true}, nil
}

func res(title, src, location string, score float64) source.Result {
	return source.Result{Title: title, Source: src, Location: location, RelevanceScore: score}
}

func fptr(v float64) *float64 { return &v }

func newTestAggregator(timeout time.Duration, adapters ...source.Adapter) *Aggregator {
	return New(source.NewRegistry(adapters...), Config{AdapterTimeout: timeout}, logx.Nop())
}

func TestRunValidation(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{name: "a"}
	agg := newTestAggregator(time.Second, ad)

	if _, err := agg.Run(context.Background(), source.Query{Keywords: "   ", MaxResults: 5}); !source.IsValidation(err) {
		t.Fatalf("expected validation error for blank keywords, got %v", err)
	}
	if _, err := agg.Run(context.Background(), source.Query{Keywords: "roads", MaxResults: 0}); !source.IsValidation(err) {
		t.Fatalf("expected validation error for max results 0, got %v", err)
	}
	if n := ad.calls.Load(); n != 0 {
		t.Fatalf("adapter was called %d times for invalid queries", n)
	}
}

func TestRunPartialFailure(t *testing.T) {
	t.Parallel()
	ok := &fakeAdapter{name: "alpha", results: []source.Result{res("Road works", "alpha", "Berlin", 0.9)}}
	rate := &fakeAdapter{name: "beta", err: source.RateLimited("beta", nil)}
	agg := newTestAggregator(time.Second, ok, rate)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "road", MaxResults: 10})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Title != "Road works" {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
	if len(out.SourcesSucceeded) != 1 || out.SourcesSucceeded[0] != "alpha" {
		t.Fatalf("SourcesSucceeded = %v", out.SourcesSucceeded)
	}
	if len(out.SourcesFailed) != 1 || out.SourcesFailed[0] != "beta" {
		t.Fatalf("SourcesFailed = %v", out.SourcesFailed)
	}
}

func TestRunAllSourcesFailed(t *testing.T) {
	t.Parallel()
	agg := newTestAggregator(time.Second,
		&fakeAdapter{name: "alpha", err: source.Unreachable("alpha", nil)},
		&fakeAdapter{name: "beta", err: source.Malformed("beta", nil)},
	)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "bridge", MaxResults: 10})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(out.Results))
	}
	if len(out.SourcesFailed) != 2 {
		t.Fatalf("SourcesFailed = %v", out.SourcesFailed)
	}
}

func TestRunTimeoutDoesNotBlock(t *testing.T) {
	t.Parallel()
	fast := &fakeAdapter{name: "fast", results: []source.Result{res("Quick tender", "fast", "", 0.7)}}
	slow := &fakeAdapter{name: "slow", hang: true}
	agg := newTestAggregator(50*time.Millisecond, fast, slow)

	start := time.Now()
	out, err := agg.Run(context.Background(), source.Query{Keywords: "tender", MaxResults: 10})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Run took %v, hung adapter was not cut off", elapsed)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected the fast adapter's result, got %+v", out.Results)
	}
	if len(out.SourcesFailed) != 1 || out.SourcesFailed[0] != "slow" {
		t.Fatalf("SourcesFailed = %v", out.SourcesFailed)
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "alpha", results: []source.Result{
		{Title: "Hospital  Renovation", Source: "alpha", Location: "Lyon", RelevanceScore: 0.6, URL: "https://alpha/1"},
	}}
	b := &fakeAdapter{name: "beta", results: []source.Result{
		{Title: "hospital renovation", Source: "beta", Location: "lyon", RelevanceScore: 0.8, EstimatedValue: fptr(250000)},
	}}
	agg := newTestAggregator(time.Second, a, b)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "hospital", MaxResults: 10})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected one merged result, got %d", len(out.Results))
	}
	got := out.Results[0]
	if got.RelevanceScore != 0.8 {
		t.Fatalf("merged score = %v, want the higher 0.8", got.RelevanceScore)
	}
	if got.EstimatedValue == nil || *got.EstimatedValue != 250000 {
		t.Fatalf("merged estimated value = %v", got.EstimatedValue)
	}
	if got.URL != "https://alpha/1" {
		t.Fatalf("merged URL = %q, want the filled one", got.URL)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("merged sources = %v, want both contributors", got.Sources)
	}
}

func TestRunLocationSplitsDuplicates(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "alpha", results: []source.Result{
		res("Fiber rollout", "alpha", "Oslo", 0.5),
		res("Fiber rollout", "alpha", "", 0.5),
	}}
	b := &fakeAdapter{name: "beta", results: []source.Result{
		res("Fiber rollout", "beta", "", 0.5),
	}}
	agg := newTestAggregator(time.Second, a, b)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "fiber", MaxResults: 10})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// The located record stays separate; the two unlocated ones merge.
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(out.Results), out.Results)
	}
}

func TestRunRankingAndTruncation(t *testing.T) {
	t.Parallel()
	a := &fakeAdapter{name: "alpha", results: []source.Result{
		res("A", "alpha", "", 0.9),
		res("B", "alpha", "", 0.5),
		res("C", "alpha", "", 0.5),
		res("D", "alpha", "", 0.2),
	}}
	withValue := res("E", "beta", "", 0.5)
	withValue.EstimatedValue = fptr(1000)
	b := &fakeAdapter{name: "beta", results: []source.Result{
		withValue,
		res("F", "beta", "", 0.7),
		res("G", "beta", "", 0.1),
		res("H", "beta", "", 0.05),
	}}
	agg := newTestAggregator(time.Second, a, b)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "x", MaxResults: 5})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	titles := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		titles = append(titles, r.Title)
	}
	// 0.9, 0.7, then the three 0.5s: value presence first, then adapter order.
	want := []string{"A", "F", "E", "B", "C"}
	if len(titles) != len(want) {
		t.Fatalf("got %d results %v, want %v", len(titles), titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("rank %d = %q, want %q (full order %v)", i, titles[i], want[i], titles)
		}
	}
}

func TestRunTruncatesAfterMerge(t *testing.T) {
	t.Parallel()
	// alpha's low-ranked record must merge with beta's duplicate before the
	// global cap applies, not get cut off first.
	a := &fakeAdapter{name: "alpha", results: []source.Result{
		res("A1", "alpha", "", 0.9),
		res("Shared", "alpha", "", 0.1),
	}}
	shared := res("Shared", "beta", "", 0.95)
	shared.EstimatedValue = fptr(500)
	b := &fakeAdapter{name: "beta", results: []source.Result{shared}}
	agg := newTestAggregator(time.Second, a, b)

	out, err := agg.Run(context.Background(), source.Query{Keywords: "x", MaxResults: 2})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	// The merged record took beta's higher score and ranks first.
	if out.Results[0].Title != "Shared" || out.Results[0].RelevanceScore != 0.95 {
		t.Fatalf("top result = %+v, want merged Shared@0.95", out.Results[0])
	}
	if len(out.Results[0].Sources) != 2 {
		t.Fatalf("merged sources = %v", out.Results[0].Sources)
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()
	if got := normalizeTitle("  Road   WORKS \tphase 2 "); got != "road works phase 2" {
		t.Fatalf("normalizeTitle = %q", got)
	}
}
