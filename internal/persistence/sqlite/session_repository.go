package sqlite

import (
	"context"
	"fmt"

	"github.com/example/meetgrid/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateSession stores a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	query := `
		INSERT INTO sessions (id, created_at)
		VALUES (?, ?)
	`
	if _, err := r.pool.DB().ExecContext(ctx, query, session.ID, formatTimestamp(session.CreatedAt)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	query := `
		SELECT id, created_at
		FROM sessions
		WHERE id = ?
	`

	var (
		session   persistence.Session
		createdAt string
	)
	if err := r.pool.DB().QueryRowContext(ctx, query, id).Scan(&session.ID, &createdAt); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	var err error
	if session.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// AddMember records membership. Repeated calls keep the first join time.
func (r *SessionRepository) AddMember(ctx context.Context, membership persistence.Membership) error {
	query := `
		INSERT INTO session_members (session_id, participant_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id, participant_id) DO NOTHING
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		membership.SessionID,
		membership.ParticipantID,
		formatTimestamp(membership.JoinedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ListMembers returns the session's participants ordered by join time.
func (r *SessionRepository) ListMembers(ctx context.Context, sessionID string) ([]persistence.Participant, error) {
	query := `
		SELECT p.id, p.email, p.display_name, p.avatar_url, p.created_at, p.updated_at
		FROM session_members m
		JOIN participants p ON p.id = m.participant_id
		WHERE m.session_id = ?
		ORDER BY m.joined_at ASC, p.id ASC
	`

	rows, err := r.pool.DB().QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	participants := make([]persistence.Participant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return participants, nil
}

// CountMembers returns the number of distinct participants in the session.
func (r *SessionRepository) CountMembers(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM session_members WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session members: %w", r.mapper.MapError(err))
	}
	return count, nil
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)
