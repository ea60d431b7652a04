package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/meetgrid/internal/persistence"
)

// busyJSON is the stored shape of one busy interval.
type busyJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite.
type AvailabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAvailabilityRepository creates a new SQLite availability repository.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// UpsertAvailability replaces the busy list stored under the record key.
// Concurrent writers to the same key resolve as last write wins.
func (r *AvailabilityRepository) UpsertAvailability(ctx context.Context, record persistence.AvailabilityRecord) error {
	busy := make([]busyJSON, 0, len(record.Busy))
	for _, interval := range record.Busy {
		busy = append(busy, busyJSON{Start: interval.Start.UTC(), End: interval.End.UTC()})
	}
	payload, err := json.Marshal(busy)
	if err != nil {
		return fmt.Errorf("encode busy intervals: %w", err)
	}

	query := `
		INSERT INTO availability (session_id, participant_id, window_start, window_end, busy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, participant_id, window_start, window_end) DO UPDATE SET
			busy = excluded.busy,
			updated_at = excluded.updated_at
	`

	err = r.retry.WithRetry(ctx, func() error {
		_, execErr := r.pool.DB().ExecContext(ctx, query,
			record.SessionID,
			record.ParticipantID,
			record.WindowStart.UnixNano(),
			record.WindowEnd.UnixNano(),
			string(payload),
			formatTimestamp(record.UpdatedAt),
		)
		return execErr
	})
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ListAvailability returns the records stored for exactly this window,
// ordered by participant ID.
func (r *AvailabilityRepository) ListAvailability(ctx context.Context, sessionID string, windowStart, windowEnd time.Time) ([]persistence.AvailabilityRecord, error) {
	query := `
		SELECT participant_id, busy, updated_at
		FROM availability
		WHERE session_id = ? AND window_start = ? AND window_end = ?
		ORDER BY participant_id ASC
	`

	rows, err := r.pool.DB().QueryContext(ctx, query, sessionID, windowStart.UnixNano(), windowEnd.UnixNano())
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	records := make([]persistence.AvailabilityRecord, 0)
	for rows.Next() {
		var (
			record    persistence.AvailabilityRecord
			payload   string
			updatedAt string
		)
		if err := rows.Scan(&record.ParticipantID, &payload, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}

		var busy []busyJSON
		if err := json.Unmarshal([]byte(payload), &busy); err != nil {
			return nil, fmt.Errorf("decode busy intervals for %s: %w", record.ParticipantID, err)
		}
		record.Busy = make([]persistence.BusyInterval, 0, len(busy))
		for _, interval := range busy {
			record.Busy = append(record.Busy, persistence.BusyInterval{Start: interval.Start, End: interval.End})
		}

		if record.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
			return nil, err
		}
		record.SessionID = sessionID
		record.WindowStart = time.Unix(0, windowStart.UnixNano()).UTC()
		record.WindowEnd = time.Unix(0, windowEnd.UnixNano()).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}

// DeleteAvailabilityBefore removes records last written before cutoff.
func (r *AvailabilityRepository) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM availability WHERE updated_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

var _ persistence.AvailabilityRepository = (*AvailabilityRepository)(nil)
