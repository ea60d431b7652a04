package persistence

import (
	"context"
	"time"
)

// SessionRepository stores sessions and their memberships.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	AddMember(ctx context.Context, membership Membership) error
	ListMembers(ctx context.Context, sessionID string) ([]Participant, error)
	CountMembers(ctx context.Context, sessionID string) (int, error)
}

// ParticipantRepository stores participant identities.
type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
}

// AvailabilityRepository is the busy-interval cache keyed by session,
// participant and exact window.
type AvailabilityRepository interface {
	UpsertAvailability(ctx context.Context, record AvailabilityRecord) error
	ListAvailability(ctx context.Context, sessionID string, windowStart, windowEnd time.Time) ([]AvailabilityRecord, error)
	DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialRepository stores sealed OAuth credentials.
type CredentialRepository interface {
	SaveCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, participantID string) (Credential, error)
	DeleteCredential(ctx context.Context, participantID string) error
}
