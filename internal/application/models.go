package application

import "time"

// Principal represents the signed-in participant invoking a service method.
type Principal struct {
	ParticipantID string
}

// Authenticated reports whether the principal identifies a participant.
func (p Principal) Authenticated() bool {
	return p.ParticipantID != ""
}

// Session is a scheduling room reachable through a shareable link.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// Participant is a signed-in user.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// SessionDetails is a session together with the participants that joined it.
type SessionDetails struct {
	Session      Session
	Participants []Participant
}

// Window is the range over which availability is published and aggregated.
// Records are keyed by the exact Start and End instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// BusyInterval is a half-open block [Start, End) of unavailability.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// AvailabilityRecord is one participant's busy list for one session window.
type AvailabilityRecord struct {
	SessionID     string
	ParticipantID string
	Window        Window
	Busy          []BusyInterval
	UpdatedAt     time.Time
}

// Slot is one grid cell with the number of participants busy during it.
type Slot struct {
	Start time.Time
	End   time.Time
	Count int
}

// AggregatedAvailability is the response of an aggregation request.
type AggregatedAvailability struct {
	Slots            []Slot
	ParticipantCount int
}

// Credential is an immutable access grant to a participant's calendar. It is
// produced fresh for every request and never modified by the core.
type Credential struct {
	ParticipantID string
	AccessToken   string
	TokenType     string
	Expiry        time.Time
}

// PublishAvailabilityParams wraps the data required to publish busy intervals.
type PublishAvailabilityParams struct {
	Principal Principal
	SessionID string
	Window    Window
	Busy      []BusyInterval
}

// AggregateParams identifies the session window to aggregate.
type AggregateParams struct {
	SessionID string
	Window    Window
}

// SyncAvailabilityParams drives the fetch, publish and aggregate sequence.
type SyncAvailabilityParams struct {
	Principal Principal
	SessionID string
	Window    Window
}

// FetchBusyParams requests the caller's busy intervals without publishing.
type FetchBusyParams struct {
	Principal Principal
	Window    Window
}

// JoinSessionParams adds the caller to a session.
type JoinSessionParams struct {
	Principal Principal
	SessionID string
}
