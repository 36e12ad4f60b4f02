package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"cowork/backend/internal/model"
)

func (e *testEnv) insertRawSession(t *testing.T, session *model.Session) {
	t.Helper()
	now := e.clock.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.JoinCode == "" {
		session.JoinCode = session.ID[:8]
	}
	if session.PhaseStartedAt.IsZero() {
		session.PhaseStartedAt = now
	}
	if session.LastHeartbeat.IsZero() {
		session.LastHeartbeat = now
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Version == 0 {
		session.Version = 1
	}
	if session.Visibility == "" {
		session.Visibility = model.VisibilityPrivate
	}
	if session.Schedule == nil {
		session.Schedule = classicSchedule()
	}
	if err := e.sessionRepo.Insert(context.Background(), session); err != nil {
		t.Fatalf("insert session: %v", err)
	}
}

func TestSweepDeletesEmptySessions(t *testing.T) {
	env := newTestEnv(t)

	empty := &model.Session{
		Title:        "Abandoned",
		HostID:       "ghost",
		HostName:     "Ghost",
		Participants: []model.Participant{},
	}
	env.insertRawSession(t, empty)

	summary := env.cleanup.Sweep(context.Background())
	if summary.Scanned != 1 || summary.Deleted != 1 {
		t.Fatalf("expected 1 scanned / 1 deleted, got %+v", summary)
	}

	if _, err := env.sessionRepo.Get(context.Background(), empty.ID); err == nil {
		t.Fatal("expected empty session deleted")
	}
}

func TestSweepRepairsMissingHost(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now().UTC()

	broken := &model.Session{
		Title:    "Host crashed",
		HostID:   "vanished",
		HostName: "Vanished",
		Participants: []model.Participant{
			{UserID: "bob", UserName: "Bob", JoinTime: now.Add(-time.Minute), Role: model.RoleCoworker},
			{UserID: "carol", UserName: "Carol", JoinTime: now, Role: model.RoleCoworker},
		},
	}
	env.insertRawSession(t, broken)

	summary := env.cleanup.Sweep(context.Background())
	if summary.Repaired != 1 || summary.Deleted != 0 {
		t.Fatalf("expected 1 repaired / 0 deleted, got %+v", summary)
	}

	repaired, err := env.sessionRepo.Get(context.Background(), broken.ID)
	if err != nil {
		t.Fatalf("get repaired session: %v", err)
	}
	if repaired.HostID != "bob" || repaired.HostName != "Bob" {
		t.Fatalf("expected oldest participant promoted, got %s", repaired.HostID)
	}
	if repaired.FindParticipant("bob").Role != model.RoleHost {
		t.Fatal("expected promoted participant marked host")
	}

	// Repair is idempotent: a second sweep changes nothing.
	summary = env.cleanup.Sweep(context.Background())
	if summary.Repaired != 0 || summary.Deleted != 0 {
		t.Fatalf("expected no-op second sweep, got %+v", summary)
	}
	unchanged, err := env.sessionRepo.Get(context.Background(), broken.ID)
	if err != nil {
		t.Fatalf("get session after second sweep: %v", err)
	}
	if unchanged.Version != repaired.Version {
		t.Fatalf("expected version unchanged by no-op sweep, got %d vs %d", unchanged.Version, repaired.Version)
	}
}

func TestSweepDeletesStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	hostID := env.createUser(t, "alice")
	view := env.commence(t, hostID)

	// Fresh session survives a sweep.
	summary := env.cleanup.Sweep(context.Background())
	if summary.Deleted != 0 {
		t.Fatalf("expected fresh session kept, got %+v", summary)
	}

	// Past the 90 minute heartbeat TTL it is collected, regardless of
	// any participant action.
	env.clock.Advance(91 * time.Minute)
	summary = env.cleanup.Sweep(context.Background())
	if summary.Deleted != 1 {
		t.Fatalf("expected stale session deleted, got %+v", summary)
	}

	if _, apiErr := env.sessions.Get(context.Background(), hostID, view.ID); apiErr == nil || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 after stale deletion, got %v", apiErr)
	}
}

func TestParticipantReadKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t)
	hostID := env.createUser(t, "alice")
	view := env.commence(t, hostID)

	// A participant polling the record refreshes the heartbeat.
	env.clock.Advance(60 * time.Minute)
	if _, apiErr := env.sessions.Get(context.Background(), hostID, view.ID); apiErr != nil {
		t.Fatalf("get session: %v", apiErr)
	}

	env.clock.Advance(60 * time.Minute)
	summary := env.cleanup.Sweep(context.Background())
	if summary.Deleted != 0 {
		t.Fatalf("expected heartbeat to keep session alive, got %+v", summary)
	}
}
