package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cowork/backend/internal/model"
)

// SessionRepository persists session records as single rows whose
// nested sub-documents (schedule, participants, asks) are JSON text
// columns. Every gateway action reads and writes one row inside one
// transaction, which keeps the record atomic per session.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const sessionColumns = `id, title, host_id, host_name, schedule, current_phase_index,
	phase_started_at, participants, active_asks, visibility, join_code,
	last_heartbeat, completed_at, version, created_at, updated_at`

func (r *SessionRepository) Insert(ctx context.Context, session *model.Session) error {
	scheduleJSON, participantsJSON, asksJSON, err := marshalSessionDocs(session)
	if err != nil {
		return err
	}

	var completedAt interface{}
	if session.CompletedAt != nil {
		completedAt = session.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Title,
		session.HostID,
		session.HostName,
		scheduleJSON,
		session.CurrentPhaseIndex,
		session.PhaseStartedAt.UTC().Format(time.RFC3339Nano),
		participantsJSON,
		asksJSON,
		session.Visibility,
		session.JoinCode,
		session.LastHeartbeat.UTC().Format(time.RFC3339Nano),
		completedAt,
		session.Version,
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
		session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

func (r *SessionRepository) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Session, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

func (r *SessionRepository) GetByJoinCodeTx(ctx context.Context, tx *sql.Tx, joinCode string) (*model.Session, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE join_code = ?`,
		joinCode,
	)
	return scanSession(row)
}

func (r *SessionRepository) UpdateTx(ctx context.Context, tx *sql.Tx, session *model.Session) error {
	scheduleJSON, participantsJSON, asksJSON, err := marshalSessionDocs(session)
	if err != nil {
		return err
	}

	var completedAt interface{}
	if session.CompletedAt != nil {
		completedAt = session.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE sessions
		 SET title = ?,
		     host_id = ?,
		     host_name = ?,
		     schedule = ?,
		     current_phase_index = ?,
		     phase_started_at = ?,
		     participants = ?,
		     active_asks = ?,
		     visibility = ?,
		     join_code = ?,
		     last_heartbeat = ?,
		     completed_at = ?,
		     version = ?,
		     updated_at = ?
		 WHERE id = ?`,
		session.Title,
		session.HostID,
		session.HostName,
		scheduleJSON,
		session.CurrentPhaseIndex,
		session.PhaseStartedAt.UTC().Format(time.RFC3339Nano),
		participantsJSON,
		asksJSON,
		session.Visibility,
		session.JoinCode,
		session.LastHeartbeat.UTC().Format(time.RFC3339Nano),
		completedAt,
		session.Version,
		session.UpdatedAt.UTC().Format(time.RFC3339Nano),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListIDs returns every session id, oldest first. The cleanup sweep
// iterates ids and re-reads each row inside its own transaction so a
// session mutated mid-sweep is never repaired from a stale copy.
func (r *SessionRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}

	return ids, nil
}

func marshalSessionDocs(session *model.Session) (string, string, string, error) {
	scheduleJSON, err := json.Marshal(session.Schedule)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal session schedule: %w", err)
	}

	participants := session.Participants
	if participants == nil {
		participants = []model.Participant{}
	}
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal session participants: %w", err)
	}

	asks := session.ActiveAsks
	if asks == nil {
		asks = []model.Ask{}
	}
	asksJSON, err := json.Marshal(asks)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal session asks: %w", err)
	}

	return string(scheduleJSON), string(participantsJSON), string(asksJSON), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*model.Session, error) {
	var session model.Session
	var scheduleJSON string
	var participantsJSON string
	var asksJSON string
	var phaseStartedAt string
	var lastHeartbeat string
	var completedAt sql.NullString
	var createdAt string
	var updatedAt string

	err := s.Scan(
		&session.ID,
		&session.Title,
		&session.HostID,
		&session.HostName,
		&scheduleJSON,
		&session.CurrentPhaseIndex,
		&phaseStartedAt,
		&participantsJSON,
		&asksJSON,
		&session.Visibility,
		&session.JoinCode,
		&lastHeartbeat,
		&completedAt,
		&session.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(scheduleJSON), &session.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal session schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(participantsJSON), &session.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal session participants: %w", err)
	}
	if err := json.Unmarshal([]byte(asksJSON), &session.ActiveAsks); err != nil {
		return nil, fmt.Errorf("unmarshal session asks: %w", err)
	}

	parsedPhaseStartedAt, err := parseTime(phaseStartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session phase_started_at: %w", err)
	}
	session.PhaseStartedAt = parsedPhaseStartedAt

	parsedHeartbeat, err := parseTime(lastHeartbeat)
	if err != nil {
		return nil, fmt.Errorf("parse session last_heartbeat: %w", err)
	}
	session.LastHeartbeat = parsedHeartbeat

	if completedAt.Valid {
		parsedCompletedAt, parseErr := parseTime(completedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse session completed_at: %w", parseErr)
		}
		session.CompletedAt = &parsedCompletedAt
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	session.CreatedAt = parsedCreatedAt

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}
	session.UpdatedAt = parsedUpdatedAt

	return &session, nil
}
