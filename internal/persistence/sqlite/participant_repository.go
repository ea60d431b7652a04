package sqlite

import (
	"context"

	"github.com/example/meetgrid/internal/persistence"
)

// ParticipantRepository implements persistence.ParticipantRepository using SQLite.
type ParticipantRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewParticipantRepository creates a new SQLite participant repository.
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool, mapper: NewErrorMapper()}
}

// UpsertParticipant inserts the participant or refreshes its profile fields.
func (r *ParticipantRepository) UpsertParticipant(ctx context.Context, participant persistence.Participant) error {
	query := `
		INSERT INTO participants (id, email, display_name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		participant.ID,
		participant.Email,
		participant.DisplayName,
		participant.AvatarURL,
		formatTimestamp(participant.CreatedAt),
		formatTimestamp(participant.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetParticipant retrieves a participant by ID.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	query := `
		SELECT id, email, display_name, avatar_url, created_at, updated_at
		FROM participants
		WHERE id = ?
	`
	participant, err := scanParticipant(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.Participant{}, r.mapper.MapError(err)
	}
	return participant, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (persistence.Participant, error) {
	var (
		participant          persistence.Participant
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&participant.ID,
		&participant.Email,
		&participant.DisplayName,
		&participant.AvatarURL,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Participant{}, err
	}

	var err error
	if participant.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Participant{}, err
	}
	if participant.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.Participant{}, err
	}
	return participant, nil
}

var _ persistence.ParticipantRepository = (*ParticipantRepository)(nil)
