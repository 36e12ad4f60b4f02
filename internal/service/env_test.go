package service_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"cowork/backend/internal/db"
	"cowork/backend/internal/model"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/service"
)

type testEnv struct {
	clock        *clockwork.FakeClock
	userRepo     *repository.UserRepository
	sessionRepo  *repository.SessionRepository
	templateRepo *repository.TemplateRepository
	sessions     *service.SessionService
	templates    *service.TemplateService
	cleanup      *service.CleanupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	userRepo := repository.NewUserRepository(database)
	templateRepo := repository.NewTemplateRepository(database)
	sessionRepo := repository.NewSessionRepository(database)

	return &testEnv{
		clock:        clock,
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		templateRepo: templateRepo,
		sessions:     service.NewSessionService(sessionRepo, templateRepo, userRepo, clock),
		templates:    service.NewTemplateService(templateRepo, clock),
		cleanup:      service.NewCleanupService(sessionRepo, 90*time.Minute, 10*time.Minute, clock, zerolog.Nop()),
	}
}

func (e *testEnv) createUser(t *testing.T, name string) string {
	t.Helper()
	now := e.clock.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        name + "@example.com",
		DisplayName:  name,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.userRepo.Create(context.Background(), &user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user.ID
}

func classicSchedule() model.Schedule {
	return model.Schedule{
		{Title: "Focus", Kind: model.PhaseFocus, DurationMinutes: 25},
		{Title: "Break", Kind: model.PhaseBreak, DurationMinutes: 5},
		{Title: "Focus", Kind: model.PhaseFocus, DurationMinutes: 25},
	}
}

func (e *testEnv) commence(t *testing.T, hostID string) *service.SessionView {
	t.Helper()
	view, apiErr := e.sessions.Commence(context.Background(), hostID, service.CommenceInput{
		Title:    "Morning focus",
		Schedule: classicSchedule(),
	})
	if apiErr != nil {
		t.Fatalf("commence session: %v", apiErr)
	}
	return view
}

func (e *testEnv) join(t *testing.T, userID, code, name string) *service.SessionView {
	t.Helper()
	result, apiErr := e.sessions.JoinByCode(context.Background(), userID, service.JoinInput{
		SessionCode: code,
		UserName:    name,
	})
	if apiErr != nil {
		t.Fatalf("join session as %s: %v", name, apiErr)
	}
	return result.Session
}

func (e *testEnv) apply(t *testing.T, actorID, sessionID string, action service.Action) *service.SessionView {
	t.Helper()
	view, apiErr := e.sessions.Apply(context.Background(), actorID, sessionID, action)
	if apiErr != nil {
		t.Fatalf("apply %s: %v", action.Type, apiErr)
	}
	return view
}

func strPtr(v string) *string {
	return &v
}
