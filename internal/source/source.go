// Package source defines the uniform contract for querying one external
// tender/offer site, plus the concrete adapters this deployment knows about.
//
// Adding a source means adding a type that implements Adapter and registering
// it; nothing downstream changes.
package source

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Query is one search request against a single adapter.
type Query struct {
	Keywords   string
	MaxResults int
}

// Normalize trims keywords. Returns the normalized query and whether the
// keywords survive trimming.
func (q Query) Normalize() (Query, bool) {
	q.Keywords = strings.TrimSpace(q.Keywords)
	return q, q.Keywords != ""
}

// Result is one normalized hit from a source.
//
// Source is the adapter that produced the record. Sources is filled when
// records from multiple adapters are merged and lists every contributor;
// for a fresh adapter result it is nil.
type Result struct {
	Title          string
	Source         string
	Sources        []string
	URL            string
	RelevanceScore float64
	EstimatedValue *float64
	Location       string
	PublishedAt    time.Time
}

// Status is the outcome of a liveness probe.
type Status struct {
	Online  bool
	Latency time.Duration
}

// Adapter is the capability set of one external source.
//
// Search must honor the context deadline, never return more than
// query.MaxResults records, and attach a RelevanceScore to every record
// (0.5 when the source offers no ranking signal).
//
// Probe is a cheap reachability check; it must never run a full search.
type Adapter interface {
	Name() string
	Describe() string
	Search(ctx context.Context, query Query) ([]Result, error)
	Probe(ctx context.Context) (Status, error)
}

// Info describes an adapter for the site-listing surface.
type Info struct {
	Name        string
	Description string
}

// Registry holds the ordered adapter set. Registration order is stable and
// used as the final ranking tie-break.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.adapters = append(r.adapters, a)
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

func (r *Registry) Get(name string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// List returns adapter infos sorted by name for stable display.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, Info{Name: a.Name(), Description: a.Describe()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Len() int { return len(r.adapters) }
