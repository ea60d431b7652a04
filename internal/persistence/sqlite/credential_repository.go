package sqlite

import (
	"context"

	"github.com/example/meetgrid/internal/persistence"
)

// CredentialRepository implements persistence.CredentialRepository using SQLite.
type CredentialRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewCredentialRepository creates a new SQLite credential repository.
func NewCredentialRepository(pool *ConnectionPool) *CredentialRepository {
	return &CredentialRepository{pool: pool, mapper: NewErrorMapper()}
}

// SaveCredential stores or replaces the sealed credential of a participant.
func (r *CredentialRepository) SaveCredential(ctx context.Context, credential persistence.Credential) error {
	query := `
		INSERT INTO credentials (participant_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (participant_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		credential.ParticipantID,
		credential.Payload,
		formatTimestamp(credential.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetCredential retrieves the sealed credential of a participant.
func (r *CredentialRepository) GetCredential(ctx context.Context, participantID string) (persistence.Credential, error) {
	query := `
		SELECT participant_id, payload, updated_at
		FROM credentials
		WHERE participant_id = ?
	`

	var (
		credential persistence.Credential
		updatedAt  string
	)
	err := r.pool.DB().QueryRowContext(ctx, query, participantID).Scan(&credential.ParticipantID, &credential.Payload, &updatedAt)
	if err != nil {
		return persistence.Credential{}, r.mapper.MapError(err)
	}
	if credential.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.Credential{}, err
	}
	return credential, nil
}

// DeleteCredential removes the credential of a participant if present.
func (r *CredentialRepository) DeleteCredential(ctx context.Context, participantID string) error {
	if _, err := r.pool.DB().ExecContext(ctx, `DELETE FROM credentials WHERE participant_id = ?`, participantID); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

var _ persistence.CredentialRepository = (*CredentialRepository)(nil)
