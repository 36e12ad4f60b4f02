package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cowork/backend/internal/model"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Insert(ctx context.Context, template *model.ScheduleTemplate) error {
	scheduleJSON, err := json.Marshal(template.Schedule)
	if err != nil {
		return fmt.Errorf("marshal template schedule: %w", err)
	}
	activationJSON, err := json.Marshal(template.Activation)
	if err != nil {
		return fmt.Errorf("marshal template activation: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO schedule_templates (
			id, owner_id, title, schedule, activation, recurrence, color, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.OwnerID,
		template.Title,
		string(scheduleJSON),
		string(activationJSON),
		template.Recurrence,
		template.Color,
		template.CreatedAt.UTC().Format(time.RFC3339Nano),
		template.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*model.ScheduleTemplate, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, owner_id, title, schedule, activation, recurrence, color, created_at, updated_at
		 FROM schedule_templates
		 WHERE id = ?`,
		id,
	)
	return scanTemplate(row)
}

func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduleTemplate, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, owner_id, title, schedule, activation, recurrence, color, created_at, updated_at
		 FROM schedule_templates
		 WHERE owner_id = ?
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]model.ScheduleTemplate, 0)
	for rows.Next() {
		template, scanErr := scanTemplate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		templates = append(templates, *template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

func (r *TemplateRepository) Update(ctx context.Context, template *model.ScheduleTemplate) error {
	scheduleJSON, err := json.Marshal(template.Schedule)
	if err != nil {
		return fmt.Errorf("marshal template schedule: %w", err)
	}
	activationJSON, err := json.Marshal(template.Activation)
	if err != nil {
		return fmt.Errorf("marshal template activation: %w", err)
	}

	result, err := r.db.ExecContext(
		ctx,
		`UPDATE schedule_templates
		 SET title = ?,
		     schedule = ?,
		     activation = ?,
		     recurrence = ?,
		     color = ?,
		     updated_at = ?
		 WHERE id = ?`,
		template.Title,
		string(scheduleJSON),
		string(activationJSON),
		template.Recurrence,
		template.Color,
		template.UpdatedAt.UTC().Format(time.RFC3339Nano),
		template.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTemplate(s scanner) (*model.ScheduleTemplate, error) {
	var template model.ScheduleTemplate
	var scheduleJSON string
	var activationJSON string
	var createdAt string
	var updatedAt string

	err := s.Scan(
		&template.ID,
		&template.OwnerID,
		&template.Title,
		&scheduleJSON,
		&activationJSON,
		&template.Recurrence,
		&template.Color,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}

	if err := json.Unmarshal([]byte(scheduleJSON), &template.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal template schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(activationJSON), &template.Activation); err != nil {
		return nil, fmt.Errorf("unmarshal template activation: %w", err)
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse template created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse template updated_at: %w", err)
	}
	template.CreatedAt = parsedCreatedAt
	template.UpdatedAt = parsedUpdatedAt

	return &template, nil
}
