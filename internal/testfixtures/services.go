package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/meetgrid/internal/adapter"
	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
	"github.com/example/meetgrid/internal/persistence/memory"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("session"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("session")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// NewSessionService builds a session service over the repository using the
// factory clock and identifiers.
func (f *ServiceFactory) NewSessionService(sessions application.SessionRepository, logger *slog.Logger) *application.SessionService {
	return application.NewSessionServiceWithLogger(sessions, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewAvailabilityService builds an availability service. Unset clocks default
// to the factory clock.
func (f *ServiceFactory) NewAvailabilityService(deps application.AvailabilityServiceDeps) *application.AvailabilityService {
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	return application.NewAvailabilityService(deps)
}

// Repositories is the subset of storage the services read and write.
type Repositories struct {
	Sessions     persistence.SessionRepository
	Participants persistence.ParticipantRepository
	Availability persistence.AvailabilityRepository
}

// MemoryRepositories exposes an in-memory store as Repositories.
func MemoryRepositories(store *memory.Storage) Repositories {
	return Repositories{Sessions: store, Participants: store, Availability: store}
}

// SQLiteRepositories exposes a migrated SQLite harness as Repositories.
func SQLiteRepositories(h *SQLiteHarness) Repositories {
	return Repositories{Sessions: h.Sessions, Participants: h.Participants, Availability: h.Availability}
}

// Services bundles wired application services.
type Services struct {
	Sessions     *application.SessionService
	Availability *application.AvailabilityService
}

// Wire builds both services over repos through the storage adapters. The
// credential provider and fetcher may be nil when only publishing is exercised.
func (f *ServiceFactory) Wire(repos Repositories, credentials application.CredentialProvider, fetcher application.BusyFetcher) Services {
	sessions := adapter.NewSessionStore(repos.Sessions)
	return Services{
		Sessions: f.NewSessionService(sessions, nil),
		Availability: f.NewAvailabilityService(application.AvailabilityServiceDeps{
			Sessions:    sessions,
			Cache:       adapter.NewAvailabilityCache(repos.Availability),
			Credentials: credentials,
			Fetcher:     fetcher,
		}),
	}
}
