// Package sqlite implements the persistence repositories on SQLite through
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/meetgrid/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the repositories that share one connection pool.
type Storage struct {
	pool *ConnectionPool

	Sessions     *SessionRepository
	Participants *ParticipantRepository
	Availability *AvailabilityRepository
	Credentials  *CredentialRepository
}

// Open opens the database file at path with production settings.
func Open(path string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path))
}

// OpenWithConfig opens a storage with explicit connection settings.
func OpenWithConfig(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:         pool,
		Sessions:     NewSessionRepository(pool),
		Participants: NewParticipantRepository(pool),
		Availability: NewAvailabilityRepository(pool),
		Credentials:  NewCredentialRepository(pool),
	}, nil
}

// Migrate applies pending schema migrations and returns the applied versions.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) ([]string, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		logger,
	)
	return manager.Run(ctx)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
