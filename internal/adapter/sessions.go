package adapter

import (
	"context"
	"time"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
)

// SessionStore exposes a persistence.SessionRepository to the application
// layer.
type SessionStore struct {
	repo persistence.SessionRepository
}

// NewSessionStore wraps repo.
func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

var _ application.SessionRepository = (*SessionStore)(nil)

// CreateSession persists a new session.
func (s *SessionStore) CreateSession(ctx context.Context, session application.Session) error {
	return s.repo.CreateSession(ctx, persistence.Session{ID: session.ID, CreatedAt: session.CreatedAt.UTC()})
}

// GetSession loads a session by id.
func (s *SessionStore) GetSession(ctx context.Context, id string) (application.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session{ID: session.ID, CreatedAt: session.CreatedAt}, nil
}

// AddMember records a participant joining a session.
func (s *SessionStore) AddMember(ctx context.Context, sessionID, participantID string, joinedAt time.Time) error {
	return s.repo.AddMember(ctx, persistence.Membership{
		SessionID:     sessionID,
		ParticipantID: participantID,
		JoinedAt:      joinedAt.UTC(),
	})
}

// ListMembers returns the participants of a session in join order.
func (s *SessionStore) ListMembers(ctx context.Context, sessionID string) ([]application.Participant, error) {
	members, err := s.repo.ListMembers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, application.Participant{
			ID:          m.ID,
			Email:       m.Email,
			DisplayName: m.DisplayName,
			AvatarURL:   m.AvatarURL,
		})
	}
	return out, nil
}

// CountMembers returns the number of participants in a session.
func (s *SessionStore) CountMembers(ctx context.Context, sessionID string) (int, error) {
	return s.repo.CountMembers(ctx, sessionID)
}
