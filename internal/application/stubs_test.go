package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/meetgrid/internal/persistence"
)

type sessionRepoStub struct {
	mu       sync.Mutex
	sessions map[string]Session
	members  map[string][]Participant
	known    map[string]Participant

	createErrs []error
	getErr     error
	addErr     error
	listErr    error
	countErr   error
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{
		sessions: make(map[string]Session),
		members:  make(map[string][]Participant),
		known:    make(map[string]Participant),
	}
}

func (r *sessionRepoStub) withSession(id string) *sessionRepoStub {
	r.sessions[id] = Session{ID: id, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return r
}

func (r *sessionRepoStub) withParticipants(ids ...string) *sessionRepoStub {
	for _, id := range ids {
		r.known[id] = Participant{ID: id, DisplayName: id}
	}
	return r
}

func (r *sessionRepoStub) CreateSession(ctx context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *sessionRepoStub) GetSession(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return Session{}, r.getErr
	}
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *sessionRepoStub) AddMember(ctx context.Context, sessionID, participantID string, joinedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	participant, ok := r.known[participantID]
	if !ok {
		return persistence.ErrForeignKeyViolation
	}
	for _, existing := range r.members[sessionID] {
		if existing.ID == participantID {
			return nil
		}
	}
	r.members[sessionID] = append(r.members[sessionID], participant)
	return nil
}

func (r *sessionRepoStub) ListMembers(ctx context.Context, sessionID string) ([]Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]Participant(nil), r.members[sessionID]...), nil
}

func (r *sessionRepoStub) CountMembers(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.members[sessionID]), nil
}

type cacheKey struct {
	sessionID     string
	participantID string
	start, end    int64
}

type cacheStub struct {
	mu      sync.Mutex
	records map[cacheKey]AvailabilityRecord
	upserts int

	upsertErr error
	listErr   error
	deleteErr error
	cutoff    time.Time
}

func newCacheStub() *cacheStub {
	return &cacheStub{records: make(map[cacheKey]AvailabilityRecord)}
}

func (c *cacheStub) UpsertAvailability(ctx context.Context, record AvailabilityRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.upserts++
	key := cacheKey{record.SessionID, record.ParticipantID, record.Window.Start.UnixNano(), record.Window.End.UnixNano()}
	c.records[key] = record
	return nil
}

func (c *cacheStub) ListAvailability(ctx context.Context, sessionID string, window Window) ([]AvailabilityRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []AvailabilityRecord
	for key, record := range c.records {
		if key.sessionID == sessionID && key.start == window.Start.UnixNano() && key.end == window.End.UnixNano() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (c *cacheStub) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return 0, c.deleteErr
	}
	c.cutoff = cutoff
	var removed int64
	for key, record := range c.records {
		if record.UpdatedAt.Before(cutoff) {
			delete(c.records, key)
			removed++
		}
	}
	return removed, nil
}

func (c *cacheStub) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type credentialStub struct {
	err   error
	calls int
}

func (c *credentialStub) Credential(ctx context.Context, participantID string) (Credential, error) {
	c.calls++
	if c.err != nil {
		return Credential{}, c.err
	}
	return Credential{ParticipantID: participantID, AccessToken: "token-" + participantID, TokenType: "Bearer"}, nil
}

type fetcherStub struct {
	busy  []BusyInterval
	err   error
	block bool

	gotCredential Credential
	gotWindow     Window
}

func (f *fetcherStub) FetchBusy(ctx context.Context, credential Credential, window Window) ([]BusyInterval, error) {
	f.gotCredential = credential
	f.gotWindow = window
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.busy, nil
}

type metricsStub struct {
	mu           sync.Mutex
	fetches      []string
	publishes    []string
	aggregations int
}

func (m *metricsStub) ObserveFetch(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, outcome)
}

func (m *metricsStub) ObservePublish(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes = append(m.publishes, outcome)
}

func (m *metricsStub) ObserveAggregation(time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregations++
}
