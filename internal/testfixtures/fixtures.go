package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
)

var (
	participantCounter uint64
	sessionCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures. It
// is a Monday at midnight UTC so that it doubles as a window start.
func ReferenceTime() time.Time {
	return referenceTime
}

// Week returns the seven day window starting at start.
func Week(start time.Time) application.Window {
	return application.Window{Start: start, End: start.Add(7 * 24 * time.Hour)}
}

// ----------------------------- Participant fixtures -----------------------------

// ParticipantFixture represents a deterministic signed-in participant.
type ParticipantFixture struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant fixture with optional overrides.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	id := fmt.Sprintf("google-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ParticipantFixture{
		ID:          id,
		Email:       fmt.Sprintf("participant-%03d@example.com", idx),
		DisplayName: fmt.Sprintf("Participant %03d", idx),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithParticipantID overrides the generated participant ID.
func WithParticipantID(id string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.ID = id
	}
}

// WithParticipantEmail overrides the generated email address.
func WithParticipantEmail(email string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.Email = email
	}
}

// WithParticipantDisplayName overrides the generated display name.
func WithParticipantDisplayName(name string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.DisplayName = name
	}
}

// Principal returns the principal that represents this participant.
func (f ParticipantFixture) Principal() application.Principal {
	return application.Principal{ParticipantID: f.ID}
}

// Application returns the fixture as an application.Participant value.
func (f ParticipantFixture) Application() application.Participant {
	return application.Participant{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		AvatarURL:   f.AvatarURL,
	}
}

// Persistence returns the fixture as a persistence.Participant value.
func (f ParticipantFixture) Persistence() persistence.Participant {
	return persistence.Participant{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		AvatarURL:   f.AvatarURL,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture represents a deterministic session.
type SessionFixture struct {
	ID        string
	CreatedAt time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionCreatedAt overrides the creation time.
func WithSessionCreatedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{ID: f.ID, CreatedAt: f.CreatedAt}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{ID: f.ID, CreatedAt: f.CreatedAt}
}

// Membership returns the membership of participant in the session.
func (f SessionFixture) Membership(participant ParticipantFixture) persistence.Membership {
	return persistence.Membership{
		SessionID:     f.ID,
		ParticipantID: participant.ID,
		JoinedAt:      f.CreatedAt.Add(time.Minute),
	}
}

// ----------------------------- Availability fixtures -----------------------------

// AvailabilityFixture is one cached busy list.
type AvailabilityFixture struct {
	SessionID     string
	ParticipantID string
	Window        application.Window
	Busy          []application.BusyInterval
	UpdatedAt     time.Time
}

// AvailabilityOption configures the generated availability fixture.
type AvailabilityOption func(*AvailabilityFixture)

// NewAvailabilityFixture returns a record for participant in session over the
// reference week with no busy time.
func NewAvailabilityFixture(session SessionFixture, participant ParticipantFixture, opts ...AvailabilityOption) AvailabilityFixture {
	fixture := AvailabilityFixture{
		SessionID:     session.ID,
		ParticipantID: participant.ID,
		Window:        Week(referenceTime),
		Busy:          []application.BusyInterval{},
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWindow overrides the record window.
func WithWindow(window application.Window) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Window = window
	}
}

// WithBusy appends a busy interval.
func WithBusy(start, end time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Busy = append(f.Busy, application.BusyInterval{Start: start, End: end})
	}
}

// WithUpdatedAt overrides the write time.
func WithUpdatedAt(t time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.UpdatedAt = t
	}
}

// Persistence returns the fixture as a persistence.AvailabilityRecord value.
func (f AvailabilityFixture) Persistence() persistence.AvailabilityRecord {
	busy := make([]persistence.BusyInterval, 0, len(f.Busy))
	for _, b := range f.Busy {
		busy = append(busy, persistence.BusyInterval{Start: b.Start, End: b.End})
	}
	return persistence.AvailabilityRecord{
		SessionID:     f.SessionID,
		ParticipantID: f.ParticipantID,
		WindowStart:   f.Window.Start,
		WindowEnd:     f.Window.End,
		Busy:          busy,
		UpdatedAt:     f.UpdatedAt,
	}
}
