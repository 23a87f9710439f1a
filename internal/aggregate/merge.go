package aggregate

import (
	"sort"
	"strings"

	"tenderwatch/internal/source"
)

// merger deduplicates results across adapters.
//
// Two results are duplicates when their normalized titles match and their
// locations match (a record with a location never merges with one without).
// A merged record keeps the higher relevance score, the union of non-null
// optional fields, and lists every contributing adapter.
type merger struct {
	byKey map[string]*mergedResult
	order []string
}

type mergedResult struct {
	res source.Result
	// orderIdx is the lowest registration index among contributing adapters,
	// used as the final ranking tie-break.
	orderIdx int
}

func newMerger() *merger {
	return &merger{byKey: map[string]*mergedResult{}}
}

func (m *merger) add(adapterIdx int, results []source.Result) {
	for _, r := range results {
		key := dedupKey(r)
		cur, ok := m.byKey[key]
		if !ok {
			r.Sources = []string{r.Source}
			m.byKey[key] = &mergedResult{res: r, orderIdx: adapterIdx}
			m.order = append(m.order, key)
			continue
		}
		cur.res = merge(cur.res, r)
		if adapterIdx < cur.orderIdx {
			cur.orderIdx = adapterIdx
		}
	}
}

// ranked sorts by relevance descending, ties broken by estimated-value
// presence and then adapter registration order, and truncates to maxResults.
// Truncation happens only here, after the merge, so a low global cap cannot
// starve a lower-ranked adapter's unique records before they get merged.
func (m *merger) ranked(maxResults int) []source.Result {
	items := make([]*mergedResult, 0, len(m.order))
	for _, key := range m.order {
		items = append(items, m.byKey[key])
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.res.RelevanceScore != b.res.RelevanceScore {
			return a.res.RelevanceScore > b.res.RelevanceScore
		}
		av, bv := a.res.EstimatedValue != nil, b.res.EstimatedValue != nil
		if av != bv {
			return av
		}
		return a.orderIdx < b.orderIdx
	})

	out := make([]source.Result, 0, len(items))
	for _, it := range items {
		out = append(out, it.res)
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func merge(a, b source.Result) source.Result {
	// Keep the higher-scored record as the base so its source stays primary.
	lo, hi := a, b
	if a.RelevanceScore >= b.RelevanceScore {
		lo, hi = b, a
	}
	hi.Sources = appendSource(append(a.Sources, b.Sources...), lo.Source)
	hi.Sources = appendSource(hi.Sources, hi.Source)
	if hi.EstimatedValue == nil {
		hi.EstimatedValue = lo.EstimatedValue
	}
	if hi.URL == "" {
		hi.URL = lo.URL
	}
	if hi.Location == "" {
		hi.Location = lo.Location
	}
	if hi.PublishedAt.IsZero() {
		hi.PublishedAt = lo.PublishedAt
	}
	return hi
}

func appendSource(sources []string, name string) []string {
	if name == "" {
		return sources
	}
	for _, s := range sources {
		if s == name {
			return sources
		}
	}
	return append(sources, name)
}

func dedupKey(r source.Result) string {
	return normalizeTitle(r.Title) + "\x00" + strings.ToLower(strings.TrimSpace(r.Location))
}

// normalizeTitle case-folds and collapses internal whitespace.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
