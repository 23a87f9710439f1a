package scheduler

import (
	"context"
	"strings"
	"time"

	"tenderwatch/internal/schedule"
	"tenderwatch/internal/source"
	"tenderwatch/internal/storage"
	logx "tenderwatch/pkg/logx"
)

// Create validates and persists a new recurring search. The initial
// next-due timestamp is computed from now, so the first run happens one
// full interval after creation.
func (s *Service) Create(ctx context.Context, ownerID int64, keywords string, freq schedule.Frequency, custom *schedule.CustomSpec) (storage.Definition, error) {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return storage.Definition{}, source.ErrEmptyKeywords
	}
	if err := schedule.Validate(freq, custom); err != nil {
		return storage.Definition{}, source.Validationf("invalid schedule: %v", err)
	}

	now := time.Now()
	next, err := schedule.Next(freq, custom, now)
	if err != nil {
		return storage.Definition{}, err
	}

	def := storage.Definition{
		OwnerID:       ownerID,
		Keywords:      keywords,
		Frequency:     freq,
		Custom:        custom,
		Active:        true,
		NextExecution: next,
		CreatedAt:     now,
	}
	if err := s.store.CreateDefinition(ctx, &def); err != nil {
		return storage.Definition{}, err
	}
	s.log.Info("scheduled search created",
		logx.Int64("id", def.ID),
		logx.Int64("owner", ownerID),
		logx.String("frequency", string(freq)),
		logx.Time("next", next))
	return def, nil
}

// List returns the owner's definitions.
func (s *Service) List(ctx context.Context, ownerID int64) ([]storage.Definition, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// UpdateSchedule edits a definition's recurrence. The next-due timestamp is
// recomputed from now, as on any frequency/custom edit.
func (s *Service) UpdateSchedule(ctx context.Context, id int64, freq schedule.Frequency, custom *schedule.CustomSpec) error {
	if err := schedule.Validate(freq, custom); err != nil {
		return source.Validationf("invalid schedule: %v", err)
	}
	next, err := schedule.Next(freq, custom, time.Now())
	if err != nil {
		return err
	}
	if err := s.store.UpdateSchedule(ctx, id, freq, custom, next); err != nil {
		return err
	}
	s.log.Info("scheduled search rescheduled",
		logx.Int64("id", id),
		logx.String("frequency", string(freq)),
		logx.Time("next", next))
	return nil
}

// Deactivate disables a definition. A run already in flight finishes, but
// its completion cannot reactivate or reschedule the definition.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.store.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("scheduled search deactivated", logx.Int64("id", id))
	return nil
}

// Activate re-enables a user-disabled definition. The stored next-due
// timestamp is kept; if it already passed, the next tick runs it.
func (s *Service) Activate(ctx context.Context, id int64) error {
	if err := s.store.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.log.Info("scheduled search activated", logx.Int64("id", id))
	return nil
}

// Delete removes a definition entirely. Its run history stays append-only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteDefinition(ctx, id); err != nil {
		return err
	}
	s.guards.forget(id)
	s.log.Info("scheduled search deleted", logx.Int64("id", id))
	return nil
}
