package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "cowork/backend/internal/errors"
	"cowork/backend/internal/model"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/schedule"
)

type TemplateService struct {
	repo  *repository.TemplateRepository
	clock clockwork.Clock
}

func NewTemplateService(repo *repository.TemplateRepository, clock clockwork.Clock) *TemplateService {
	return &TemplateService{repo: repo, clock: clock}
}

type TemplateInput struct {
	Title      string
	Schedule   model.Schedule
	Activation model.ActivationPolicy
	Recurrence string
	Color      string
}

// TemplateView adds the projected total and the resolved next start
// instant, recomputed on every read so pending countdowns never drift.
type TemplateView struct {
	model.ScheduleTemplate
	TotalMinutes int        `json:"totalMinutes"`
	NextStartAt  *time.Time `json:"nextStartAt,omitempty"`
}

func (s *TemplateService) Create(ctx context.Context, ownerID string, input TemplateInput) (*TemplateView, *apperrors.APIError) {
	if apiErr := validateTemplateInput(&input); apiErr != nil {
		return nil, apiErr
	}

	now := s.clock.Now().UTC()
	template := model.ScheduleTemplate{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      input.Title,
		Schedule:   input.Schedule,
		Activation: input.Activation,
		Recurrence: input.Recurrence,
		Color:      input.Color,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, &template); err != nil {
		return nil, apperrors.Internal("failed to create template")
	}

	view := s.toView(&template, now)
	return &view, nil
}

func (s *TemplateService) List(ctx context.Context, ownerID string) ([]TemplateView, *apperrors.APIError) {
	templates, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal("failed to list templates")
	}

	now := s.clock.Now().UTC()
	views := make([]TemplateView, 0, len(templates))
	for i := range templates {
		views = append(views, s.toView(&templates[i], now))
	}
	return views, nil
}

func (s *TemplateService) Get(ctx context.Context, ownerID, id string) (*TemplateView, *apperrors.APIError) {
	template, apiErr := s.getOwned(ctx, ownerID, id)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toView(template, s.clock.Now().UTC())
	return &view, nil
}

func (s *TemplateService) Update(ctx context.Context, ownerID, id string, input TemplateInput) (*TemplateView, *apperrors.APIError) {
	if apiErr := validateTemplateInput(&input); apiErr != nil {
		return nil, apiErr
	}

	template, apiErr := s.getOwned(ctx, ownerID, id)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.clock.Now().UTC()
	template.Title = input.Title
	template.Schedule = input.Schedule
	template.Activation = input.Activation
	template.Recurrence = input.Recurrence
	template.Color = input.Color
	template.UpdatedAt = now

	if err := s.repo.Update(ctx, template); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NotFound("template_not_found", "template not found")
		}
		return nil, apperrors.Internal("failed to update template")
	}

	view := s.toView(template, now)
	return &view, nil
}

func (s *TemplateService) Delete(ctx context.Context, ownerID, id string) *apperrors.APIError {
	if _, apiErr := s.getOwned(ctx, ownerID, id); apiErr != nil {
		return apiErr
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.NotFound("template_not_found", "template not found")
		}
		return apperrors.Internal("failed to delete template")
	}
	return nil
}

func (s *TemplateService) getOwned(ctx context.Context, ownerID, id string) (*model.ScheduleTemplate, *apperrors.APIError) {
	template, err := s.repo.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("template_not_found", "template not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get template")
	}
	if template.OwnerID != ownerID {
		return nil, apperrors.Forbidden("not_owner", "template belongs to another user")
	}
	return template, nil
}

func (s *TemplateService) toView(template *model.ScheduleTemplate, now time.Time) TemplateView {
	view := TemplateView{
		ScheduleTemplate: *template,
		TotalMinutes:     template.Schedule.TotalMinutes(),
	}

	resolved := schedule.ResolveActivation(template.Activation, now)
	if resolved != nil {
		next := schedule.NextOccurrence(*resolved, template.Recurrence, template.Schedule.TotalDuration(), now)
		view.NextStartAt = &next
	}
	return view
}

func validateTemplateInput(input *TemplateInput) *apperrors.APIError {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return apperrors.BadRequest("invalid_title", "title is required")
	}
	if apiErr := validateSchedule(input.Schedule); apiErr != nil {
		return apiErr
	}
	if !model.IsValidActivationKind(input.Activation.Kind) {
		return apperrors.BadRequest("invalid_activation", "activation kind must be one of immediate, manual, at_wall_clock")
	}
	if input.Activation.Kind == model.ActivationAtWallClock {
		if input.Activation.At == nil || !input.Activation.At.IsValid() {
			return apperrors.BadRequest("invalid_activation", "at_wall_clock requires a valid time of day")
		}
	}
	if input.Recurrence == "" {
		input.Recurrence = model.RecurrenceNone
	}
	if !model.IsValidRecurrence(input.Recurrence) {
		return apperrors.BadRequest("invalid_recurrence", "recurrence must be one of none, daily, weekly, monthly")
	}
	return nil
}

// validateSchedule enforces the activation invariant: non-empty, every
// phase a known kind with positive duration. Phase ids are assigned
// here if the client omitted them.
func validateSchedule(s model.Schedule) *apperrors.APIError {
	if len(s) == 0 {
		return apperrors.BadRequest("invalid_schedule", "schedule must contain at least one phase")
	}
	for i := range s {
		if !model.IsValidPhaseKind(s[i].Kind) {
			return apperrors.BadRequest("invalid_phase_kind", "phase kind must be focus or break")
		}
		if s[i].DurationMinutes <= 0 {
			return apperrors.BadRequest("invalid_duration", "phase duration must be positive minutes")
		}
		if s[i].ID == "" {
			s[i].ID = uuid.NewString()
		}
	}
	return nil
}
