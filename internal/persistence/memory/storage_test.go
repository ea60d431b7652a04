package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meetgrid/internal/persistence"
)

var (
	windowStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.AddDate(0, 0, 7)
)

func TestStorage_RecordsAreCopied(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	busy := []persistence.BusyInterval{{Start: windowStart.Add(9 * time.Hour), End: windowStart.Add(10 * time.Hour)}}

	require.NoError(t, store.UpsertAvailability(ctx, persistence.AvailabilityRecord{
		SessionID:     "abc123",
		ParticipantID: "alice",
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Busy:          busy,
		UpdatedAt:     windowStart,
	}))
	busy[0].Start = windowStart

	records, err := store.ListAvailability(ctx, "abc123", windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Busy[0].Start.Equal(windowStart.Add(9*time.Hour)), "caller slice must not alias stored data")

	records[0].Busy[0].End = windowEnd
	again, err := store.ListAvailability(ctx, "abc123", windowStart, windowEnd)
	require.NoError(t, err)
	assert.True(t, again[0].Busy[0].End.Equal(windowStart.Add(10*time.Hour)), "returned slice must not alias stored data")
}

func TestStorage_ConcurrentPublishers(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := persistence.AvailabilityRecord{
				SessionID:     "abc123",
				ParticipantID: fmt.Sprintf("p-%02d", i%5),
				WindowStart:   windowStart,
				WindowEnd:     windowEnd,
				Busy:          []persistence.BusyInterval{{Start: windowStart, End: windowStart.Add(time.Duration(i+1) * time.Minute)}},
				UpdatedAt:     windowStart,
			}
			assert.NoError(t, store.UpsertAvailability(ctx, record))
		}(i)
	}
	wg.Wait()

	records, err := store.ListAvailability(ctx, "abc123", windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, records, 5, "one record per participant key")
	for i, record := range records {
		assert.Equal(t, fmt.Sprintf("p-%02d", i), record.ParticipantID)
		assert.Len(t, record.Busy, 1)
	}
}

func TestStorage_CloseIsNoop(t *testing.T) {
	t.Parallel()

	store := New()
	require.NoError(t, store.Close())
	require.NoError(t, store.CreateSession(context.Background(), persistence.Session{ID: "abc123", CreatedAt: windowStart}))
}
