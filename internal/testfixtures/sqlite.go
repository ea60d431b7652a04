package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/meetgrid/internal/persistence"
	"github.com/example/meetgrid/internal/persistence/sqlite"
	"github.com/example/meetgrid/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage      *sqlite.Storage
	Sessions     persistence.SessionRepository
	Participants persistence.ParticipantRepository
	Availability persistence.AvailabilityRepository
	Credentials  persistence.CredentialRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "meetgrid.db")

	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if _, err := storage.Migrate(context.Background(), nil); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:      storage,
		Sessions:     storage.Sessions,
		Participants: storage.Participants,
		Availability: storage.Availability,
		Credentials:  storage.Credentials,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
