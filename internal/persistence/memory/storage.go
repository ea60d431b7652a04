// Package memory provides a process-local implementation of every persistence
// repository. It backs tests and ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/meetgrid/internal/persistence"
)

type availabilityKey struct {
	sessionID     string
	participantID string
	windowStart   int64
	windowEnd     int64
}

func keyFor(sessionID, participantID string, windowStart, windowEnd time.Time) availabilityKey {
	return availabilityKey{
		sessionID:     sessionID,
		participantID: participantID,
		windowStart:   windowStart.UnixNano(),
		windowEnd:     windowEnd.UnixNano(),
	}
}

// Storage keeps all records in maps guarded by a single lock.
type Storage struct {
	mu           sync.RWMutex
	sessions     map[string]persistence.Session
	participants map[string]persistence.Participant
	members      map[string]map[string]time.Time
	availability map[availabilityKey]persistence.AvailabilityRecord
	credentials  map[string]persistence.Credential
}

// New returns an empty storage.
func New() *Storage {
	return &Storage{
		sessions:     make(map[string]persistence.Session),
		participants: make(map[string]persistence.Participant),
		members:      make(map[string]map[string]time.Time),
		availability: make(map[availabilityKey]persistence.AvailabilityRecord),
		credentials:  make(map[string]persistence.Credential),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("memory: session %s: %w", session.ID, persistence.ErrConflict)
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

// AddMember records membership. Repeated calls keep the first join time.
func (s *Storage) AddMember(ctx context.Context, membership persistence.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[membership.SessionID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.participants[membership.ParticipantID]; !ok {
		return persistence.ErrForeignKeyViolation
	}

	members := s.members[membership.SessionID]
	if members == nil {
		members = make(map[string]time.Time)
		s.members[membership.SessionID] = members
	}
	if _, ok := members[membership.ParticipantID]; !ok {
		members[membership.ParticipantID] = membership.JoinedAt
	}
	return nil
}

// ListMembers returns the session's participants ordered by join time.
func (s *Storage) ListMembers(ctx context.Context, sessionID string) ([]persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.members[sessionID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := members[ids[i]], members[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})

	participants := make([]persistence.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, s.participants[id])
	}
	return participants, nil
}

// CountMembers returns the number of distinct participants in the session.
func (s *Storage) CountMembers(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.members[sessionID]), nil
}

// --- ParticipantRepository implementation ---

// UpsertParticipant stores or refreshes a participant, keeping CreatedAt.
func (s *Storage) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.participants[participant.ID]; ok {
		participant.CreatedAt = existing.CreatedAt
	}
	s.participants[participant.ID] = participant
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *Storage) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[id]
	if !ok {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return participant, nil
}

// --- AvailabilityRepository implementation ---

// UpsertAvailability replaces the busy list stored under the record key.
func (s *Storage) UpsertAvailability(ctx context.Context, record persistence.AvailabilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(record.SessionID, record.ParticipantID, record.WindowStart, record.WindowEnd)
	s.availability[key] = record.Clone()
	return nil
}

// ListAvailability returns the records stored for exactly this window,
// ordered by participant ID.
func (s *Storage) ListAvailability(ctx context.Context, sessionID string, windowStart, windowEnd time.Time) ([]persistence.AvailabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := windowStart.UnixNano(), windowEnd.UnixNano()
	records := make([]persistence.AvailabilityRecord, 0)
	for key, record := range s.availability {
		if key.sessionID == sessionID && key.windowStart == start && key.windowEnd == end {
			records = append(records, record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ParticipantID < records[j].ParticipantID
	})
	return records, nil
}

// DeleteAvailabilityBefore removes records last written before cutoff.
func (s *Storage) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, record := range s.availability {
		if record.UpdatedAt.Before(cutoff) {
			delete(s.availability, key)
			removed++
		}
	}
	return removed, nil
}

// --- CredentialRepository implementation ---

// SaveCredential stores or replaces a participant's credential.
func (s *Storage) SaveCredential(ctx context.Context, credential persistence.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := make([]byte, len(credential.Payload))
	copy(payload, credential.Payload)
	credential.Payload = payload
	s.credentials[credential.ParticipantID] = credential
	return nil
}

// GetCredential retrieves a participant's credential.
func (s *Storage) GetCredential(ctx context.Context, participantID string) (persistence.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[participantID]
	if !ok {
		return persistence.Credential{}, persistence.ErrNotFound
	}
	payload := make([]byte, len(credential.Payload))
	copy(payload, credential.Payload)
	credential.Payload = payload
	return credential, nil
}

// DeleteCredential removes a participant's credential if present.
func (s *Storage) DeleteCredential(ctx context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, participantID)
	return nil
}

var (
	_ persistence.SessionRepository      = (*Storage)(nil)
	_ persistence.ParticipantRepository  = (*Storage)(nil)
	_ persistence.AvailabilityRepository = (*Storage)(nil)
	_ persistence.CredentialRepository   = (*Storage)(nil)
)
