package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"cowork/backend/internal/db"
	"cowork/backend/internal/handler"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/router"
	"cowork/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type sessionEnvelope struct {
	Session *struct {
		ID           string `json:"id"`
		HostID       string `json:"hostId"`
		JoinCode     string `json:"joinCode"`
		Participants []struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		} `json:"participants"`
		ActiveAsks []struct {
			ID     string `json:"id"`
			Extend struct {
				Status string `json:"status"`
			} `json:"extend"`
		} `json:"activeAsks"`
		Position struct {
			State            string `json:"state"`
			PhaseIndex       int    `json:"phaseIndex"`
			RemainingSeconds int    `json:"remainingSeconds"`
		} `json:"position"`
	} `json:"session"`
}

type joinEnvelope struct {
	Session       json.RawMessage `json:"session"`
	AlreadyJoined bool            `json:"alreadyJoined"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	engine := setupTestEngine(t)

	host := registerUser(t, engine, "alice@example.com", "Alice")
	bob := registerUser(t, engine, "bob@example.com", "Bob")
	carol := registerUser(t, engine, "carol@example.com", "Carol")

	// Host commences a session from an inline schedule.
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/sessions", host.Token, map[string]interface{}{
		"title": "Morning focus",
		"schedule": []map[string]interface{}{
			{"title": "Focus", "kind": "focus", "durationMinutes": 25},
			{"title": "Break", "kind": "break", "durationMinutes": 5},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("commence failed with %d: %s", status, string(raw))
	}
	created := unmarshalSession(t, raw)
	if created.Session.Position.State != "running" || created.Session.Position.PhaseIndex != 0 {
		t.Fatalf("unexpected initial position: %+v", created.Session.Position)
	}
	sessionID := created.Session.ID
	joinCode := created.Session.JoinCode

	// Two coworkers join by code.
	for _, user := range []authResponse{bob, carol} {
		status, raw = requestJSON(t, engine, http.MethodPost, "/api/sessions/join", user.Token, map[string]string{
			"sessionCode": joinCode,
		})
		if status != http.StatusOK {
			t.Fatalf("join failed with %d: %s", status, string(raw))
		}
		var joined joinEnvelope
		if err := json.Unmarshal(raw, &joined); err != nil {
			t.Fatalf("unmarshal join response: %v", err)
		}
		if joined.AlreadyJoined {
			t.Fatal("expected first join not to be flagged as duplicate")
		}
	}

	// Bob suggests an extension through the gateway.
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", bob.Token, map[string]interface{}{
		"actionType": "add_ask",
		"payload":    map[string]interface{}{"kind": "extend", "minutes": 10},
	})
	if status != http.StatusOK {
		t.Fatalf("add_ask failed with %d: %s", status, string(raw))
	}
	withAsk := unmarshalSession(t, raw)
	if len(withAsk.Session.ActiveAsks) != 1 {
		t.Fatalf("expected one ask, got %d", len(withAsk.Session.ActiveAsks))
	}
	askID := withAsk.Session.ActiveAsks[0].ID

	// Two yes votes out of three participants reach the threshold.
	for _, user := range []authResponse{bob, carol} {
		status, raw = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", user.Token, map[string]interface{}{
			"actionType": "vote_extend",
			"payload":    map[string]interface{}{"askId": askID, "vote": "yes"},
		})
		if status != http.StatusOK {
			t.Fatalf("vote_extend failed with %d: %s", status, string(raw))
		}
	}
	voted := unmarshalSession(t, raw)
	if voted.Session.ActiveAsks[0].Extend.Status != "accepted" {
		t.Fatalf("expected accepted ask, got %s", voted.Session.ActiveAsks[0].Extend.Status)
	}

	// Host leaves; the earliest joiner is promoted.
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", host.Token, map[string]interface{}{
		"actionType": "leave_session",
	})
	if status != http.StatusOK {
		t.Fatalf("leave failed with %d: %s", status, string(raw))
	}
	afterLeave := unmarshalSession(t, raw)
	if afterLeave.Session.HostID != bob.User.ID {
		t.Fatalf("expected bob promoted to host, got %s", afterLeave.Session.HostID)
	}
	if afterLeave.Session.JoinCode == joinCode {
		t.Fatal("expected join code rotated after host departure")
	}
}

func TestActionAuthorizationOverHTTP(t *testing.T) {
	engine := setupTestEngine(t)

	host := registerUser(t, engine, "alice@example.com", "Alice")
	outsider := registerUser(t, engine, "mallory@example.com", "Mallory")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/sessions", host.Token, map[string]interface{}{
		"schedule": []map[string]interface{}{
			{"kind": "focus", "durationMinutes": 25},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("commence failed with %d: %s", status, string(raw))
	}
	sessionID := unmarshalSession(t, raw).Session.ID

	// No token: 401.
	status, _ = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", "", map[string]interface{}{
		"actionType": "leave_session",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	// Valid token but not a participant: 403 with a distinct code.
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", outsider.Token, map[string]interface{}{
		"actionType": "leave_session",
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", status)
	}
	var errResp apiErrorEnvelope
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if errResp.Error.Code != "not_participant" {
		t.Fatalf("expected not_participant, got %s", errResp.Error.Code)
	}

	// Malformed action type: 400.
	status, _ = requestJSON(t, engine, http.MethodPost, "/api/sessions/"+sessionID+"/actions", host.Token, map[string]interface{}{
		"actionType": "explode",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
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

	clock := clockwork.NewRealClock()

	userRepo := repository.NewUserRepository(database)
	templateRepo := repository.NewTemplateRepository(database)
	sessionRepo := repository.NewSessionRepository(database)

	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour)
	templateService := service.NewTemplateService(templateRepo, clock)
	sessionService := service.NewSessionService(sessionRepo, templateRepo, userRepo, clock)

	authHandler := handler.NewAuthHandler(authService)
	templateHandler := handler.NewTemplateHandler(templateService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	return router.New(authService, authHandler, templateHandler, sessionHandler, []string{"http://localhost:5173"})
}

func registerUser(t *testing.T, server http.Handler, email, displayName string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":       email,
		"password":    "123456",
		"displayName": displayName,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func unmarshalSession(t *testing.T, body []byte) sessionEnvelope {
	t.Helper()
	var resp sessionEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal session response: %v", err)
	}
	if resp.Session == nil {
		t.Fatalf("missing session in response: %s", string(body))
	}
	return resp
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
