package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cowork/backend/internal/errors"
	"cowork/backend/internal/middleware"
	"cowork/backend/internal/model"
	"cowork/backend/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

type phaseRequest struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Kind            string `json:"kind"`
	DurationMinutes int    `json:"durationMinutes"`
	IsCustomLabel   bool   `json:"isCustomLabel"`
}

type commenceRequest struct {
	Title      string         `json:"title"`
	TemplateID string         `json:"templateId"`
	Schedule   []phaseRequest `json:"schedule"`
	Visibility string         `json:"visibility"`
}

type joinRequest struct {
	SessionCode     string `json:"sessionCode"`
	UserName        string `json:"userName"`
	FocusPreference string `json:"focusPreference"`
}

// actionRequest is the single gateway call: actionType selects how the
// raw payload is decoded.
type actionRequest struct {
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload"`
}

type transferHostPayload struct {
	NewHostID string `json:"newHostId"`
}

func (h *SessionHandler) Commence(c *gin.Context) {
	var req commenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	input := service.CommenceInput{
		Title:      req.Title,
		TemplateID: req.TemplateID,
		Schedule:   toSchedule(req.Schedule),
		Visibility: req.Visibility,
	}

	view, apiErr := h.sessionService.Commence(c.Request.Context(), middleware.UserID(c), input)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": view})
}

func (h *SessionHandler) Get(c *gin.Context) {
	view, apiErr := h.sessionService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

func (h *SessionHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.sessionService.JoinByCode(c.Request.Context(), middleware.UserID(c), service.JoinInput{
		SessionCode:     req.SessionCode,
		UserName:        req.UserName,
		FocusPreference: req.FocusPreference,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) Action(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	action, apiErr := decodeAction(req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	view, apiErr := h.sessionService.Apply(c.Request.Context(), middleware.UserID(c), c.Param("id"), action)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	// A nil view means the action destroyed the session.
	c.JSON(http.StatusOK, gin.H{"session": view})
}

func decodeAction(req actionRequest) (service.Action, *apperrors.APIError) {
	action := service.Action{Type: req.ActionType}

	switch req.ActionType {
	case service.ActionVoteExtend:
		var payload service.VoteExtendInput
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			return action, err
		}
		action.VoteExtend = &payload
	case service.ActionVotePoll:
		var payload service.VotePollInput
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			return action, err
		}
		action.VotePoll = &payload
	case service.ActionAddAsk, service.ActionUpdateAsk:
		var payload service.AskInput
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			return action, err
		}
		action.Ask = &payload
	case service.ActionUpdateProfile:
		var payload service.ProfileInput
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			return action, err
		}
		action.Profile = &payload
	case service.ActionTransferHost:
		var payload transferHostPayload
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			return action, err
		}
		action.NewHostID = payload.NewHostID
	case service.ActionLeaveSession, service.ActionAdvancePhase:
		// No payload.
	default:
		return action, apperrors.BadRequest("invalid_action", "unknown action type")
	}
	return action, nil
}

func unmarshalPayload(raw json.RawMessage, target interface{}) *apperrors.APIError {
	if len(raw) == 0 {
		return apperrors.BadRequest("invalid_payload", "payload is required")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.BadRequest("invalid_payload", "payload does not match action type")
	}
	return nil
}

func toSchedule(phases []phaseRequest) model.Schedule {
	schedule := make(model.Schedule, 0, len(phases))
	for _, phase := range phases {
		schedule = append(schedule, model.Phase{
			ID:              phase.ID,
			Title:           phase.Title,
			Kind:            phase.Kind,
			DurationMinutes: phase.DurationMinutes,
			IsCustomLabel:   phase.IsCustomLabel,
		})
	}
	return schedule
}
