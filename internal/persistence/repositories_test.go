package persistence_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/meetgrid/internal/persistence"
	"github.com/example/meetgrid/internal/persistence/memory"
	"github.com/example/meetgrid/internal/testfixtures"
)

type repositories struct {
	sessions     persistence.SessionRepository
	participants persistence.ParticipantRepository
	availability persistence.AvailabilityRepository
	credentials  persistence.CredentialRepository
}

var backends = []struct {
	name string
	open func(t *testing.T) repositories
}{
	{
		name: "memory",
		open: func(t *testing.T) repositories {
			store := memory.New()
			return repositories{sessions: store, participants: store, availability: store, credentials: store}
		},
	},
	{
		name: "sqlite",
		open: func(t *testing.T) repositories {
			h := testfixtures.NewSQLiteHarness(t)
			return repositories{sessions: h.Sessions, participants: h.Participants, availability: h.Availability, credentials: h.Credentials}
		},
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repos repositories)) {
	t.Helper()
	for _, backend := range backends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			t.Parallel()
			fn(t, backend.open(t))
		})
	}
}

func seedSession(t *testing.T, repos repositories, participants ...testfixtures.ParticipantFixture) testfixtures.SessionFixture {
	t.Helper()
	ctx := context.Background()

	session := testfixtures.NewSessionFixture()
	if err := repos.sessions.CreateSession(ctx, session.Persistence()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	for _, p := range participants {
		if err := repos.participants.UpsertParticipant(ctx, p.Persistence()); err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}
	}
	return session
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()
		bob := testfixtures.NewParticipantFixture()
		session := seedSession(t, repos, alice, bob)

		fetched, err := repos.sessions.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if fetched.ID != session.ID || !fetched.CreatedAt.Equal(session.CreatedAt) {
			t.Fatalf("unexpected session: %#v", fetched)
		}

		if err := repos.sessions.CreateSession(ctx, session.Persistence()); !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
		}
		if _, err := repos.sessions.GetSession(ctx, "missing-session"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		bobJoin := session.Membership(bob)
		aliceJoin := session.Membership(alice)
		aliceJoin.JoinedAt = bobJoin.JoinedAt.Add(time.Minute)
		for _, m := range []persistence.Membership{bobJoin, aliceJoin, aliceJoin} {
			if err := repos.sessions.AddMember(ctx, m); err != nil {
				t.Fatalf("AddMember failed: %v", err)
			}
		}

		count, err := repos.sessions.CountMembers(ctx, session.ID)
		if err != nil {
			t.Fatalf("CountMembers failed: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected 2 members, got %d", count)
		}

		members, err := repos.sessions.ListMembers(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 2 || members[0].ID != bob.ID || members[1].ID != alice.ID {
			t.Fatalf("expected members ordered by join time, got %#v", members)
		}
		if members[0].Email != bob.Email {
			t.Fatalf("expected participant details, got %#v", members[0])
		}
	})
}

func TestSessionRepository_MembershipForeignKeys(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()
		session := seedSession(t, repos, alice)

		err := repos.sessions.AddMember(ctx, persistence.Membership{SessionID: "missing-session", ParticipantID: alice.ID, JoinedAt: session.CreatedAt})
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation for unknown session, got %v", err)
		}

		err = repos.sessions.AddMember(ctx, persistence.Membership{SessionID: session.ID, ParticipantID: "google-unknown", JoinedAt: session.CreatedAt})
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation for unknown participant, got %v", err)
		}

		if count, err := repos.sessions.CountMembers(ctx, session.ID); err != nil || count != 0 {
			t.Fatalf("expected no members, got %d (%v)", count, err)
		}
	})
}

func TestParticipantRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()

		if err := repos.participants.UpsertParticipant(ctx, alice.Persistence()); err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}

		renamed := alice.Persistence()
		renamed.DisplayName = "Alice Renamed"
		renamed.CreatedAt = alice.CreatedAt.Add(time.Hour)
		renamed.UpdatedAt = alice.UpdatedAt.Add(time.Hour)
		if err := repos.participants.UpsertParticipant(ctx, renamed); err != nil {
			t.Fatalf("UpsertParticipant (update) failed: %v", err)
		}

		got, err := repos.participants.GetParticipant(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if got.DisplayName != "Alice Renamed" || got.Email != alice.Email {
			t.Fatalf("unexpected participant: %#v", got)
		}
		if !got.CreatedAt.Equal(alice.CreatedAt) {
			t.Fatalf("expected CreatedAt to be kept, got %v", got.CreatedAt)
		}
		if !got.UpdatedAt.Equal(renamed.UpdatedAt) {
			t.Fatalf("expected UpdatedAt %v, got %v", renamed.UpdatedAt, got.UpdatedAt)
		}

		if _, err := repos.participants.GetParticipant(ctx, "google-missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailabilityRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()
		bob := testfixtures.NewParticipantFixture()
		session := seedSession(t, repos, alice, bob)

		week := testfixtures.Week(testfixtures.ReferenceTime())
		start := week.Start

		first := testfixtures.NewAvailabilityFixture(session, alice,
			testfixtures.WithBusy(start.Add(9*time.Hour), start.Add(10*time.Hour)),
		)
		replacement := testfixtures.NewAvailabilityFixture(session, alice,
			testfixtures.WithBusy(start.Add(14*time.Hour), start.Add(15*time.Hour)),
			testfixtures.WithBusy(start.Add(38*time.Hour), start.Add(39*time.Hour)),
			testfixtures.WithUpdatedAt(start.Add(time.Hour)),
		)
		bobs := testfixtures.NewAvailabilityFixture(session, bob)
		shifted := testfixtures.NewAvailabilityFixture(session, bob,
			testfixtures.WithWindow(testfixtures.Week(start.Add(time.Hour))),
			testfixtures.WithBusy(start.Add(9*time.Hour), start.Add(10*time.Hour)),
		)

		for _, record := range []testfixtures.AvailabilityFixture{first, replacement, bobs, shifted} {
			if err := repos.availability.UpsertAvailability(ctx, record.Persistence()); err != nil {
				t.Fatalf("UpsertAvailability failed: %v", err)
			}
		}

		records, err := repos.availability.ListAvailability(ctx, session.ID, week.Start, week.End)
		if err != nil {
			t.Fatalf("ListAvailability failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records for the exact window, got %d", len(records))
		}

		byParticipant := make(map[string]persistence.AvailabilityRecord, len(records))
		for _, r := range records {
			byParticipant[r.ParticipantID] = r
		}
		gotAlice := byParticipant[alice.ID]
		if len(gotAlice.Busy) != 2 || !gotAlice.Busy[0].Start.Equal(start.Add(14*time.Hour)) || !gotAlice.Busy[1].End.Equal(start.Add(39*time.Hour)) {
			t.Fatalf("expected the replacement busy list, got %#v", gotAlice.Busy)
		}
		if !gotAlice.UpdatedAt.Equal(start.Add(time.Hour)) {
			t.Fatalf("unexpected UpdatedAt %v", gotAlice.UpdatedAt)
		}
		if gotBob, ok := byParticipant[bob.ID]; !ok || len(gotBob.Busy) != 0 {
			t.Fatalf("expected an empty busy list for bob, got %#v", gotBob)
		}

		shiftedRecords, err := repos.availability.ListAvailability(ctx, session.ID, shifted.Window.Start, shifted.Window.End)
		if err != nil {
			t.Fatalf("ListAvailability (shifted) failed: %v", err)
		}
		if len(shiftedRecords) != 1 || shiftedRecords[0].ParticipantID != bob.ID {
			t.Fatalf("unexpected shifted records %#v", shiftedRecords)
		}

		none, err := repos.availability.ListAvailability(ctx, "other-session", week.Start, week.End)
		if err != nil {
			t.Fatalf("ListAvailability (other session) failed: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no records, got %d", len(none))
		}
	})
}

func TestAvailabilityRepository_DeleteBefore(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()
		bob := testfixtures.NewParticipantFixture()
		session := seedSession(t, repos, alice, bob)
		base := testfixtures.ReferenceTime()

		stale := testfixtures.NewAvailabilityFixture(session, alice, testfixtures.WithUpdatedAt(base))
		fresh := testfixtures.NewAvailabilityFixture(session, bob, testfixtures.WithUpdatedAt(base.Add(2*time.Hour)))
		for _, record := range []testfixtures.AvailabilityFixture{stale, fresh} {
			if err := repos.availability.UpsertAvailability(ctx, record.Persistence()); err != nil {
				t.Fatalf("UpsertAvailability failed: %v", err)
			}
		}

		removed, err := repos.availability.DeleteAvailabilityBefore(ctx, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("DeleteAvailabilityBefore failed: %v", err)
		}
		if removed != 1 {
			t.Fatalf("expected 1 removed, got %d", removed)
		}

		records, err := repos.availability.ListAvailability(ctx, session.ID, stale.Window.Start, stale.Window.End)
		if err != nil {
			t.Fatalf("ListAvailability failed: %v", err)
		}
		if len(records) != 1 || records[0].ParticipantID != bob.ID {
			t.Fatalf("expected only the fresh record, got %#v", records)
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, repos repositories) {
		ctx := context.Background()
		alice := testfixtures.NewParticipantFixture()
		seedSession(t, repos, alice)
		now := testfixtures.ReferenceTime()

		if _, err := repos.credentials.GetCredential(ctx, alice.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before save, got %v", err)
		}

		payload := []byte{0x01, 0x02, 0x03}
		if err := repos.credentials.SaveCredential(ctx, persistence.Credential{ParticipantID: alice.ID, Payload: payload, UpdatedAt: now}); err != nil {
			t.Fatalf("SaveCredential failed: %v", err)
		}
		payload[0] = 0xff

		replaced := []byte{0x0a, 0x0b}
		if err := repos.credentials.SaveCredential(ctx, persistence.Credential{ParticipantID: alice.ID, Payload: replaced, UpdatedAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("SaveCredential (replace) failed: %v", err)
		}

		got, err := repos.credentials.GetCredential(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetCredential failed: %v", err)
		}
		if !bytes.Equal(got.Payload, replaced) || !got.UpdatedAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("unexpected credential %#v", got)
		}

		if err := repos.credentials.DeleteCredential(ctx, alice.ID); err != nil {
			t.Fatalf("DeleteCredential failed: %v", err)
		}
		if err := repos.credentials.DeleteCredential(ctx, alice.ID); err != nil {
			t.Fatalf("DeleteCredential should be idempotent: %v", err)
		}
		if _, err := repos.credentials.GetCredential(ctx, alice.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}
