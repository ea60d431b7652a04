package adapter

import (
	"context"
	"time"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
)

// AvailabilityCache exposes a persistence.AvailabilityRepository as the
// application's busy-interval cache.
type AvailabilityCache struct {
	repo persistence.AvailabilityRepository
}

// NewAvailabilityCache wraps repo.
func NewAvailabilityCache(repo persistence.AvailabilityRepository) *AvailabilityCache {
	return &AvailabilityCache{repo: repo}
}

var _ application.AvailabilityCache = (*AvailabilityCache)(nil)

// UpsertAvailability replaces the record for its session, participant and window.
func (c *AvailabilityCache) UpsertAvailability(ctx context.Context, record application.AvailabilityRecord) error {
	busy := make([]persistence.BusyInterval, 0, len(record.Busy))
	for _, b := range record.Busy {
		busy = append(busy, persistence.BusyInterval{Start: b.Start.UTC(), End: b.End.UTC()})
	}
	return c.repo.UpsertAvailability(ctx, persistence.AvailabilityRecord{
		SessionID:     record.SessionID,
		ParticipantID: record.ParticipantID,
		WindowStart:   record.Window.Start.UTC(),
		WindowEnd:     record.Window.End.UTC(),
		Busy:          busy,
		UpdatedAt:     record.UpdatedAt.UTC(),
	})
}

// ListAvailability returns every record stored for exactly this window.
func (c *AvailabilityCache) ListAvailability(ctx context.Context, sessionID string, window application.Window) ([]application.AvailabilityRecord, error) {
	records, err := c.repo.ListAvailability(ctx, sessionID, window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, err
	}
	out := make([]application.AvailabilityRecord, 0, len(records))
	for _, r := range records {
		busy := make([]application.BusyInterval, 0, len(r.Busy))
		for _, b := range r.Busy {
			busy = append(busy, application.BusyInterval{Start: b.Start, End: b.End})
		}
		out = append(out, application.AvailabilityRecord{
			SessionID:     r.SessionID,
			ParticipantID: r.ParticipantID,
			Window:        application.Window{Start: r.WindowStart, End: r.WindowEnd},
			Busy:          busy,
			UpdatedAt:     r.UpdatedAt,
		})
	}
	return out, nil
}

// DeleteAvailabilityBefore removes records last written before cutoff.
func (c *AvailabilityCache) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return c.repo.DeleteAvailabilityBefore(ctx, cutoff.UTC())
}
