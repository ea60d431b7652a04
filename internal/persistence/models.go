package persistence

import "time"

// Session represents a scheduling room reachable through a shareable link.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// Participant represents a signed-in user that can join sessions.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a participant to a session.
type Membership struct {
	SessionID     string
	ParticipantID string
	JoinedAt      time.Time
}

// BusyInterval is one half-open block of unavailability.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// AvailabilityRecord is the cached busy list for one participant in one
// session window. The key is (SessionID, ParticipantID, WindowStart, WindowEnd).
type AvailabilityRecord struct {
	SessionID     string
	ParticipantID string
	WindowStart   time.Time
	WindowEnd     time.Time
	Busy          []BusyInterval
	UpdatedAt     time.Time
}

// Credential holds the sealed OAuth token of a participant. Payload is opaque
// to the persistence layer.
type Credential struct {
	ParticipantID string
	Payload       []byte
	UpdatedAt     time.Time
}
