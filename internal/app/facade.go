package app

import (
	"context"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/schedule"
	"tenderwatch/internal/source"
	"tenderwatch/internal/stats"
	"tenderwatch/internal/storage"
)

// Search runs an interactive one-off search across all registered sources.
// A non-positive maxResults falls back to the configured cap; larger values
// are clamped to it.
func (a *App) Search(ctx context.Context, keywords string, maxResults int) (aggregate.Result, error) {
	if maxResults <= 0 || maxResults > a.interactiveCap {
		maxResults = a.interactiveCap
	}
	return a.agg.Run(ctx, source.Query{Keywords: keywords, MaxResults: maxResults})
}

// ListSites returns the registered sources in registration order.
func (a *App) ListSites() []source.Info {
	return a.registry.List()
}

// SiteStatus probes every registered source for reachability.
func (a *App) SiteStatus(ctx context.Context) []stats.SiteStatus {
	return a.stats.SiteStatus(ctx)
}

// CreateScheduledSearch registers a new recurring search owned by ownerID.
func (a *App) CreateScheduledSearch(ctx context.Context, ownerID int64, keywords string, freq schedule.Frequency, custom *schedule.CustomSpec) (storage.Definition, error) {
	return a.sched.Create(ctx, ownerID, keywords, freq, custom)
}

// ListScheduledSearches returns the owner's recurring searches.
func (a *App) ListScheduledSearches(ctx context.Context, ownerID int64) ([]storage.Definition, error) {
	return a.sched.List(ctx, ownerID)
}

// UpdateScheduledSearch changes a recurring search's frequency.
func (a *App) UpdateScheduledSearch(ctx context.Context, id int64, freq schedule.Frequency, custom *schedule.CustomSpec) error {
	return a.sched.UpdateSchedule(ctx, id, freq, custom)
}

// DeactivateScheduledSearch disables a recurring search without deleting it.
func (a *App) DeactivateScheduledSearch(ctx context.Context, id int64) error {
	return a.sched.Deactivate(ctx, id)
}

// ActivateScheduledSearch re-enables a previously disabled recurring search.
func (a *App) ActivateScheduledSearch(ctx context.Context, id int64) error {
	return a.sched.Activate(ctx, id)
}

// DeleteScheduledSearch removes a recurring search. Run history is kept.
func (a *App) DeleteScheduledSearch(ctx context.Context, id int64) error {
	return a.sched.Delete(ctx, id)
}

// ScheduledSearchStatistics returns the aggregate view over definitions,
// recent runs and source availability.
func (a *App) ScheduledSearchStatistics(ctx context.Context) (stats.Summary, error) {
	return a.stats.Summary(ctx)
}
