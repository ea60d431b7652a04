package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/meetgrid/internal/scheduler"
)

// AvailabilityCache is the busy-interval store keyed by session, participant
// and exact window.
type AvailabilityCache interface {
	UpsertAvailability(ctx context.Context, record AvailabilityRecord) error
	ListAvailability(ctx context.Context, sessionID string, window Window) ([]AvailabilityRecord, error)
	DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialProvider returns a fresh credential for a participant. It
// returns ErrNotAuthenticated when the participant must sign in again.
type CredentialProvider interface {
	Credential(ctx context.Context, participantID string) (Credential, error)
}

// BusyFetcher reads a participant's busy intervals from their calendar. It
// returns ErrNotAuthenticated when the provider rejects the credential.
type BusyFetcher interface {
	FetchBusy(ctx context.Context, credential Credential, window Window) ([]BusyInterval, error)
}

// MetricsRecorder receives measurements from the availability service.
type MetricsRecorder interface {
	ObserveFetch(outcome string, duration time.Duration)
	ObservePublish(outcome string)
	ObserveAggregation(duration time.Duration, records int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, time.Duration)    {}
func (noopMetrics) ObservePublish(string)                 {}
func (noopMetrics) ObserveAggregation(time.Duration, int) {}

// DefaultFetchTimeout bounds one calendar fetch.
const DefaultFetchTimeout = 10 * time.Second

// AvailabilityServiceDeps lists the collaborators of an AvailabilityService.
// Credentials and Fetcher may be nil when only publish and aggregate are used.
type AvailabilityServiceDeps struct {
	Sessions     SessionRepository
	Cache        AvailabilityCache
	Credentials  CredentialProvider
	Fetcher      BusyFetcher
	Grid         scheduler.Grid
	FetchTimeout time.Duration
	Metrics      MetricsRecorder
	Now          func() time.Time
	Logger       *slog.Logger
}

// AvailabilityService publishes busy intervals and aggregates them into the
// weekly slot grid.
type AvailabilityService struct {
	sessions     SessionRepository
	cache        AvailabilityCache
	credentials  CredentialProvider
	fetcher      BusyFetcher
	grid         scheduler.Grid
	fetchTimeout time.Duration
	metrics      MetricsRecorder
	now          func() time.Time
	logger       *slog.Logger
}

// NewAvailabilityService constructs the service, filling defaults for the
// grid, timeout, clock and metrics.
func NewAvailabilityService(deps AvailabilityServiceDeps) *AvailabilityService {
	svc := &AvailabilityService{
		sessions:     deps.Sessions,
		cache:        deps.Cache,
		credentials:  deps.Credentials,
		fetcher:      deps.Fetcher,
		grid:         deps.Grid,
		fetchTimeout: deps.FetchTimeout,
		metrics:      deps.Metrics,
		now:          deps.Now,
		logger:       defaultLogger(deps.Logger),
	}
	if svc.grid.Size() == 0 {
		svc.grid = scheduler.DefaultGrid()
	}
	if svc.fetchTimeout <= 0 {
		svc.fetchTimeout = DefaultFetchTimeout
	}
	if svc.metrics == nil {
		svc.metrics = noopMetrics{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

func (s *AvailabilityService) ready() error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.sessions == nil || s.cache == nil {
		return fmt.Errorf("availability repositories not configured")
	}
	return nil
}

// PublishAvailability stores the caller's busy intervals for the session
// window, replacing anything previously published for the same window, and
// records the caller as a session member.
func (s *AvailabilityService) PublishAvailability(ctx context.Context, params PublishAvailabilityParams) (err error) {
	if err = s.ready(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "PublishAvailability",
		"session_id", params.SessionID,
		"participant_id", params.Principal.ParticipantID,
		"busy_count", len(params.Busy),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to publish availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability published")
	}()

	if !params.Principal.Authenticated() {
		err = ErrNotAuthenticated
		return
	}
	if _, err = lookupSession(ctx, s.sessions, params.SessionID); err != nil {
		return
	}

	vErr := validateWindow(params.Window)
	vErr.merge(validateBusy(params.Busy))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.publish(ctx, params.SessionID, params.Principal.ParticipantID, params.Window, params.Busy)
	return
}

// GetAggregatedAvailability returns the slot grid for the session window and
// the number of session members.
func (s *AvailabilityService) GetAggregatedAvailability(ctx context.Context, params AggregateParams) (result AggregatedAvailability, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "GetAggregatedAvailability", "session_id", params.SessionID)
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to aggregate availability", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if _, err = lookupSession(ctx, s.sessions, params.SessionID); err != nil {
		return
	}
	if vErr := validateWindow(params.Window); vErr.HasErrors() {
		err = vErr
		return
	}

	result, err = s.aggregate(ctx, params.SessionID, params.Window)
	return
}

// SyncAvailability fetches the caller's busy intervals from their calendar,
// publishes them and returns the refreshed aggregate. A failed fetch stops
// the sequence before anything is written.
func (s *AvailabilityService) SyncAvailability(ctx context.Context, params SyncAvailabilityParams) (result AggregatedAvailability, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "SyncAvailability",
		"session_id", params.SessionID,
		"participant_id", params.Principal.ParticipantID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to sync availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability synced", "participants", result.ParticipantCount)
	}()

	if !params.Principal.Authenticated() {
		err = ErrNotAuthenticated
		return
	}
	if _, err = lookupSession(ctx, s.sessions, params.SessionID); err != nil {
		return
	}
	if vErr := validateWindow(params.Window); vErr.HasErrors() {
		err = vErr
		return
	}

	var busy []BusyInterval
	busy, err = s.fetch(ctx, params.Principal.ParticipantID, params.Window)
	if err != nil {
		return
	}

	if err = s.publish(ctx, params.SessionID, params.Principal.ParticipantID, params.Window, busy); err != nil {
		return
	}

	result, err = s.aggregate(ctx, params.SessionID, params.Window)
	return
}

// FetchBusy returns the caller's busy intervals for the window without
// storing them.
func (s *AvailabilityService) FetchBusy(ctx context.Context, params FetchBusyParams) (busy []BusyInterval, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "FetchBusy", "participant_id", params.Principal.ParticipantID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to fetch busy intervals", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !params.Principal.Authenticated() {
		err = ErrNotAuthenticated
		return
	}
	if vErr := validateWindow(params.Window); vErr.HasErrors() {
		err = vErr
		return
	}

	busy, err = s.fetch(ctx, params.Principal.ParticipantID, params.Window)
	return
}

// PruneAvailability deletes records last written more than retention ago.
// A non-positive retention keeps everything.
func (s *AvailabilityService) PruneAvailability(ctx context.Context, retention time.Duration) (removed int64, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if retention <= 0 {
		return 0, nil
	}

	logger := s.loggerWith(ctx, "PruneAvailability", "retention", retention.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to prune availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability pruned", "removed", removed)
	}()

	removed, err = s.cache.DeleteAvailabilityBefore(ctx, s.now().Add(-retention))
	if err != nil {
		err = &StorageError{Operation: "prune availability", Err: err}
	}
	return
}

func (s *AvailabilityService) fetch(ctx context.Context, participantID string, window Window) ([]BusyInterval, error) {
	if s.credentials == nil || s.fetcher == nil {
		return nil, fmt.Errorf("calendar access not configured")
	}

	started := time.Now()

	credential, err := s.credentials.Credential(ctx, participantID)
	if err != nil {
		s.metrics.ObserveFetch("credential_error", time.Since(started))
		if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrStorage) || errors.Is(err, ErrUpstreamFetchFailed) {
			return nil, err
		}
		return nil, &UpstreamError{Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	busy, err := s.fetcher.FetchBusy(fetchCtx, credential, window)
	switch {
	case err == nil:
		s.metrics.ObserveFetch("success", time.Since(started))
		if busy == nil {
			busy = []BusyInterval{}
		}
		return busy, nil
	case errors.Is(err, ErrNotAuthenticated):
		s.metrics.ObserveFetch("unauthenticated", time.Since(started))
		return nil, err
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		s.metrics.ObserveFetch("timeout", time.Since(started))
		return nil, &UpstreamError{Err: fmt.Errorf("no response within %s: %w", s.fetchTimeout, err)}
	default:
		s.metrics.ObserveFetch("error", time.Since(started))
		return nil, &UpstreamError{Err: err}
	}
}

func (s *AvailabilityService) publish(ctx context.Context, sessionID, participantID string, window Window, busy []BusyInterval) error {
	now := s.now()

	if err := addMember(ctx, s.sessions, sessionID, participantID, now); err != nil {
		s.metrics.ObservePublish("error")
		return err
	}

	record := AvailabilityRecord{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Window:        window,
		Busy:          append([]BusyInterval(nil), busy...),
		UpdatedAt:     now.UTC(),
	}
	if err := s.cache.UpsertAvailability(ctx, record); err != nil {
		s.metrics.ObservePublish("error")
		return &StorageError{Operation: "upsert availability", Err: err}
	}

	s.metrics.ObservePublish("success")
	return nil
}

func (s *AvailabilityService) aggregate(ctx context.Context, sessionID string, window Window) (AggregatedAvailability, error) {
	started := time.Now()

	records, err := s.cache.ListAvailability(ctx, sessionID, window)
	if err != nil {
		return AggregatedAvailability{}, &StorageError{Operation: "list availability", Err: err}
	}

	count, err := s.sessions.CountMembers(ctx, sessionID)
	if err != nil {
		return AggregatedAvailability{}, mapSessionRepoError("count members", err)
	}

	input := make([]scheduler.Record, 0, len(records))
	for _, record := range records {
		busy := make([]scheduler.Interval, 0, len(record.Busy))
		for _, interval := range record.Busy {
			busy = append(busy, scheduler.Interval{Start: interval.Start, End: interval.End})
		}
		input = append(input, scheduler.Record{ParticipantID: record.ParticipantID, Busy: busy})
	}

	grid := s.grid.Bucketize(window.Start, input)
	slots := make([]Slot, 0, len(grid))
	for _, slot := range grid {
		slots = append(slots, Slot{Start: slot.Start, End: slot.End, Count: slot.Count})
	}

	s.metrics.ObserveAggregation(time.Since(started), len(records))
	return AggregatedAvailability{Slots: slots, ParticipantCount: count}, nil
}
