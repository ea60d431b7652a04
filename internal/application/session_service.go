package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/meetgrid/internal/persistence"
)

// SessionRepository captures the persistence operations needed for sessions
// and their memberships.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	AddMember(ctx context.Context, sessionID, participantID string, joinedAt time.Time) error
	ListMembers(ctx context.Context, sessionID string) ([]Participant, error)
	CountMembers(ctx context.Context, sessionID string) (int, error)
}

const createSessionAttempts = 3

// SessionService creates sessions and manages their membership.
type SessionService struct {
	sessions    SessionRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService constructs a session service with the provided dependencies.
func NewSessionService(sessions SessionRepository, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(sessions, idGenerator, now, nil)
}

// NewSessionServiceWithLogger constructs a session service with a specified logger.
func NewSessionServiceWithLogger(sessions SessionRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{sessions: sessions, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateSession issues a new session with a fresh identifier. An identifier
// collision is retried with a new identifier.
func (s *SessionService) CreateSession(ctx context.Context) (session Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session created")
	}()

	for attempt := 0; attempt < createSessionAttempts; attempt++ {
		session = Session{ID: s.idGenerator(), CreatedAt: s.now().UTC()}
		err = s.sessions.CreateSession(ctx, session)
		if err == nil {
			return
		}
		if !errors.Is(err, persistence.ErrConflict) {
			err = &StorageError{Operation: "create session", Err: err}
			session = Session{}
			return
		}
	}

	err = &StorageError{Operation: "create session", Err: err}
	session = Session{}
	return
}

// GetSession returns the session and the participants that joined it.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (details SessionDetails, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "GetSession", "session_id", sessionID)
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to get session", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var session Session
	session, err = lookupSession(ctx, s.sessions, sessionID)
	if err != nil {
		return
	}

	var participants []Participant
	participants, err = s.sessions.ListMembers(ctx, sessionID)
	if err != nil {
		err = mapSessionRepoError("list members", err)
		return
	}

	details = SessionDetails{Session: session, Participants: participants}
	return
}

// JoinSession adds the signed-in participant to the session. Joining twice is
// a no-op.
func (s *SessionService) JoinSession(ctx context.Context, params JoinSessionParams) (err error) {
	if s == nil {
		return fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "JoinSession",
		"session_id", params.SessionID,
		"participant_id", params.Principal.ParticipantID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to join session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session joined")
	}()

	if !params.Principal.Authenticated() {
		err = ErrNotAuthenticated
		return
	}
	if _, err = lookupSession(ctx, s.sessions, params.SessionID); err != nil {
		return
	}

	err = addMember(ctx, s.sessions, params.SessionID, params.Principal.ParticipantID, s.now())
	return
}

// lookupSession resolves a session identifier, treating malformed
// identifiers as unknown.
func lookupSession(ctx context.Context, sessions SessionRepository, sessionID string) (Session, error) {
	if !validSessionID(sessionID) {
		return Session{}, ErrNotFound
	}
	session, err := sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapSessionRepoError("get session", err)
	}
	return session, nil
}

// addMember records membership. The session has already been resolved, so a
// foreign key failure means the participant record is missing.
func addMember(ctx context.Context, sessions SessionRepository, sessionID, participantID string, joinedAt time.Time) error {
	err := sessions.AddMember(ctx, sessionID, participantID, joinedAt.UTC())
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotAuthenticated
	}
	return mapSessionRepoError("add member", err)
}

func mapSessionRepoError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return &StorageError{Operation: operation, Err: err}
	}
}
