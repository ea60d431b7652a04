// Package redis implements the busy-interval cache on Redis. Each
// (session, window) pair is one hash and each participant one field, so a
// window read is a single HGETALL and an upsert is a single HSET.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/meetgrid/internal/persistence"
)

const availabilityPrefix = "meetgrid:availability:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Retention, when positive, expires a window hash that long after its
	// most recent write.
	Retention time.Duration
}

// AvailabilityCache implements persistence.AvailabilityRepository on Redis.
type AvailabilityCache struct {
	rdb       goredis.UniversalClient
	retention time.Duration
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*AvailabilityCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", opts.Addr, err)
	}

	return NewAvailabilityCache(rdb, opts.Retention), nil
}

// NewAvailabilityCache wraps an existing client.
func NewAvailabilityCache(rdb goredis.UniversalClient, retention time.Duration) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, retention: retention}
}

// Close closes the underlying client.
func (c *AvailabilityCache) Close() error {
	return c.rdb.Close()
}

// Ping checks that Redis is reachable.
func (c *AvailabilityCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

type storedRecord struct {
	Busy      []storedInterval `json:"busy"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type storedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// windowKey names the hash holding every participant of one session window.
func windowKey(sessionID string, windowStart, windowEnd time.Time) string {
	return availabilityPrefix + sessionID + ":" +
		strconv.FormatInt(windowStart.UnixNano(), 10) + ":" +
		strconv.FormatInt(windowEnd.UnixNano(), 10)
}

// parseWindowKey reverses windowKey.
func parseWindowKey(key string) (sessionID string, windowStart, windowEnd time.Time, ok bool) {
	rest, found := strings.CutPrefix(key, availabilityPrefix)
	if !found {
		return "", time.Time{}, time.Time{}, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return "", time.Time{}, time.Time{}, false
	}
	start, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, false
	}
	end, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, false
	}
	return parts[0], time.Unix(0, start).UTC(), time.Unix(0, end).UTC(), true
}

func encodeRecord(record persistence.AvailabilityRecord) (string, error) {
	stored := storedRecord{
		Busy:      make([]storedInterval, 0, len(record.Busy)),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
	for _, interval := range record.Busy {
		stored.Busy = append(stored.Busy, storedInterval{Start: interval.Start.UTC(), End: interval.End.UTC()})
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("redis: encode availability: %w", err)
	}
	return string(payload), nil
}

func decodeRecord(payload string) (storedRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return storedRecord{}, fmt.Errorf("redis: decode availability: %w", err)
	}
	return stored, nil
}

// UpsertAvailability replaces the participant's field in the window hash.
func (c *AvailabilityCache) UpsertAvailability(ctx context.Context, record persistence.AvailabilityRecord) error {
	payload, err := encodeRecord(record)
	if err != nil {
		return err
	}

	key := windowKey(record.SessionID, record.WindowStart, record.WindowEnd)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, record.ParticipantID, payload)
	if c.retention > 0 {
		pipe.Expire(ctx, key, c.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: upsert availability: %w", err)
	}
	return nil
}

// ListAvailability returns every participant stored for exactly this window,
// ordered by participant ID.
func (c *AvailabilityCache) ListAvailability(ctx context.Context, sessionID string, windowStart, windowEnd time.Time) ([]persistence.AvailabilityRecord, error) {
	fields, err := c.rdb.HGetAll(ctx, windowKey(sessionID, windowStart, windowEnd)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list availability: %w", err)
	}

	records := make([]persistence.AvailabilityRecord, 0, len(fields))
	for participantID, payload := range fields {
		stored, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		record := persistence.AvailabilityRecord{
			SessionID:     sessionID,
			ParticipantID: participantID,
			WindowStart:   windowStart,
			WindowEnd:     windowEnd,
			Busy:          make([]persistence.BusyInterval, 0, len(stored.Busy)),
			UpdatedAt:     stored.UpdatedAt,
		}
		for _, interval := range stored.Busy {
			record.Busy = append(record.Busy, persistence.BusyInterval{Start: interval.Start, End: interval.End})
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ParticipantID < records[j].ParticipantID
	})
	return records, nil
}

// DeleteAvailabilityBefore walks every window hash and removes fields last
// written before cutoff.
func (c *AvailabilityCache) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64

	iter := c.rdb.Scan(ctx, 0, availabilityPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, _, _, ok := parseWindowKey(key); !ok {
			continue
		}

		fields, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: read %s: %w", key, err)
		}

		var stale []string
		for participantID, payload := range fields {
			stored, err := decodeRecord(payload)
			if err != nil || stored.UpdatedAt.Before(cutoff) {
				stale = append(stale, participantID)
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := c.rdb.HDel(ctx, key, stale...).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: prune %s: %w", key, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis: scan availability keys: %w", err)
	}
	return removed, nil
}

var _ persistence.AvailabilityRepository = (*AvailabilityCache)(nil)
