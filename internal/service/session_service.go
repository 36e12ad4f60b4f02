package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"cowork/backend/internal/consensus"
	apperrors "cowork/backend/internal/errors"
	"cowork/backend/internal/model"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/schedule"
)

const (
	ActionVoteExtend    = "vote_extend"
	ActionVotePoll      = "vote_poll"
	ActionAddAsk        = "add_ask"
	ActionUpdateAsk     = "update_ask"
	ActionUpdateProfile = "update_participant_profile"
	ActionTransferHost  = "transfer_host"
	ActionLeaveSession  = "leave_session"
	ActionAdvancePhase  = "advance_phase"
)

// SessionService is the mutation gateway for live sessions. Every
// intent is applied as one read-modify-write transaction against the
// session row, so two concurrent votes can never both build on the
// same stale vote list.
type SessionService struct {
	repo         *repository.SessionRepository
	templateRepo *repository.TemplateRepository
	userRepo     *repository.UserRepository
	clock        clockwork.Clock
}

func NewSessionService(
	repo *repository.SessionRepository,
	templateRepo *repository.TemplateRepository,
	userRepo *repository.UserRepository,
	clock clockwork.Clock,
) *SessionService {
	return &SessionService{
		repo:         repo,
		templateRepo: templateRepo,
		userRepo:     userRepo,
		clock:        clock,
	}
}

type CommenceInput struct {
	Title      string
	TemplateID string
	Schedule   model.Schedule
	Visibility string
}

type JoinInput struct {
	SessionCode     string
	UserName        string
	FocusPreference string
}

type VoteExtendInput struct {
	AskID string  `json:"askId"`
	Vote  *string `json:"vote"`
}

type VotePollInput struct {
	AskID      string   `json:"askId"`
	OptionIDs  []string `json:"optionIds"`
	CustomText *string  `json:"customText"`
}

type AskOptionInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type AskInput struct {
	ID                   string           `json:"id"`
	Kind                 string           `json:"kind"`
	Minutes              int              `json:"minutes"`
	Question             string           `json:"question"`
	PollKind             string           `json:"pollKind"`
	AllowCustomResponses bool             `json:"allowCustomResponses"`
	Options              []AskOptionInput `json:"options"`
	Status               string           `json:"status"`
}

type ProfileInput struct {
	UserName        string `json:"userName"`
	FocusPreference string `json:"focusPreference"`
}

// Action is the tagged intent accepted by Apply. Type selects which
// payload field is read; the others are ignored.
type Action struct {
	Type       string
	VoteExtend *VoteExtendInput
	VotePoll   *VotePollInput
	Ask        *AskInput
	Profile    *ProfileInput
	NewHostID  string
}

// PositionView is the derived countdown state clients render from.
// It is recomputed from phaseStartedAt on every read; clients never
// trust their own elapsed-time accumulation.
type PositionView struct {
	State             string `json:"state"`
	PhaseIndex        int    `json:"phaseIndex"`
	RemainingSeconds  int    `json:"remainingSeconds"`
	UntilStartSeconds int    `json:"untilStartSeconds,omitempty"`
}

type SessionView struct {
	model.Session
	Position   PositionView `json:"position"`
	ServerTime time.Time    `json:"serverTime"`
}

type JoinResult struct {
	Session       *SessionView `json:"session"`
	AlreadyJoined bool         `json:"alreadyJoined"`
}

// Commence creates a live session from an inline schedule or one of
// the actor's templates, with the actor as host. A template's
// activation policy decides the phase-zero start: manual behaves as
// immediate because commencing is the explicit trigger, and
// at-wall-clock yields a future start the clock reports as pending.
func (s *SessionService) Commence(ctx context.Context, actorID string, input CommenceInput) (*SessionView, *apperrors.APIError) {
	now := s.clock.Now().UTC()

	title := strings.TrimSpace(input.Title)
	sched := input.Schedule
	startAt := now

	if input.TemplateID != "" {
		template, err := s.templateRepo.GetByID(ctx, input.TemplateID)
		if err == repository.ErrNotFound {
			return nil, apperrors.NotFound("template_not_found", "template not found")
		}
		if err != nil {
			return nil, apperrors.Internal("failed to get template")
		}
		if template.OwnerID != actorID {
			return nil, apperrors.Forbidden("not_owner", "template belongs to another user")
		}

		sched = template.Schedule
		if title == "" {
			title = template.Title
		}
		if resolved := schedule.ResolveActivation(template.Activation, now); resolved != nil {
			startAt = schedule.NextOccurrence(*resolved, template.Recurrence, sched.TotalDuration(), now)
		}
	}

	if apiErr := validateSchedule(sched); apiErr != nil {
		return nil, apiErr
	}
	if title == "" {
		title = "Focus session"
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}
	if !model.IsValidVisibility(visibility) {
		return nil, apperrors.BadRequest("invalid_visibility", "visibility must be public or private")
	}

	hostName, apiErr := s.resolveUserName(ctx, actorID, "")
	if apiErr != nil {
		return nil, apiErr
	}

	session := model.Session{
		ID:                uuid.NewString(),
		Title:             title,
		HostID:            actorID,
		HostName:          hostName,
		Schedule:          sched,
		CurrentPhaseIndex: 0,
		PhaseStartedAt:    startAt,
		Participants: []model.Participant{{
			UserID:   actorID,
			UserName: hostName,
			JoinTime: now,
			Role:     model.RoleHost,
		}},
		ActiveAsks:    []model.Ask{},
		Visibility:    visibility,
		JoinCode:      newJoinCode(),
		LastHeartbeat: now,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, &session); err != nil {
		return nil, apperrors.Internal("failed to create session")
	}

	view := s.toView(&session, now)
	return &view, nil
}

// Get returns the authoritative record plus derived position. A read
// by a participant counts as a heartbeat.
func (s *SessionService) Get(ctx context.Context, actorID, sessionID string) (*SessionView, *apperrors.APIError) {
	now := s.clock.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	session, err := s.repo.GetTx(ctx, tx, sessionID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get session")
	}

	isParticipant := session.HasParticipant(actorID) || session.HostID == actorID
	if !isParticipant && session.Visibility != model.VisibilityPublic {
		return nil, apperrors.Forbidden("not_participant", "session is private")
	}

	if isParticipant {
		session.LastHeartbeat = now
		if err := s.repo.UpdateTx(ctx, tx, session); err != nil {
			return nil, apperrors.Internal("failed to record heartbeat")
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := s.toView(session, now)
	return &view, nil
}

// JoinByCode adds the actor to the session behind a join code. Joining
// twice is a no-op that reports alreadyJoined.
func (s *SessionService) JoinByCode(ctx context.Context, actorID string, input JoinInput) (*JoinResult, *apperrors.APIError) {
	code := strings.ToUpper(strings.TrimSpace(input.SessionCode))
	if code == "" {
		return nil, apperrors.BadRequest("invalid_session_code", "sessionCode is required")
	}

	now := s.clock.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	session, err := s.repo.GetByJoinCodeTx(ctx, tx, code)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("session_not_found", "session not found or inactive")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get session")
	}
	if session.CompletedAt != nil {
		return nil, apperrors.NotFound("session_not_found", "session not found or inactive")
	}

	if session.HasParticipant(actorID) {
		if commitErr := tx.Commit(); commitErr != nil {
			return nil, apperrors.Internal("failed to commit transaction")
		}
		view := s.toView(session, now)
		return &JoinResult{Session: &view, AlreadyJoined: true}, nil
	}

	userName, apiErr := s.resolveUserName(ctx, actorID, input.UserName)
	if apiErr != nil {
		return nil, apiErr
	}

	session.Participants = append(session.Participants, model.Participant{
		UserID:          actorID,
		UserName:        userName,
		JoinTime:        now,
		Role:            model.RoleCoworker,
		FocusPreference: input.FocusPreference,
	})
	session.Version++
	session.LastHeartbeat = now
	session.UpdatedAt = now

	if err := s.repo.UpdateTx(ctx, tx, session); err != nil {
		return nil, apperrors.Internal("failed to update session")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := s.toView(session, now)
	return &JoinResult{Session: &view}, nil
}

// Apply runs one intent against the session record. The returned view
// is nil when the action destroyed the session (last participant
// leaving). Validation and authorization failures abort the
// transaction, so a failed action never partially mutates the record.
func (s *SessionService) Apply(ctx context.Context, actorID, sessionID string, action Action) (*SessionView, *apperrors.APIError) {
	now := s.clock.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	session, err := s.repo.GetTx(ctx, tx, sessionID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get session")
	}

	if session.HostID != actorID && !session.HasParticipant(actorID) {
		return nil, apperrors.Forbidden("not_participant", "actor is not part of this session")
	}

	destroyed := false
	var apiErr *apperrors.APIError

	switch action.Type {
	case ActionVoteExtend:
		apiErr = s.applyVoteExtend(session, actorID, action.VoteExtend)
	case ActionVotePoll:
		apiErr = s.applyVotePoll(session, actorID, action.VotePoll)
	case ActionAddAsk:
		apiErr = s.applyAddAsk(session, actorID, action.Ask, now)
	case ActionUpdateAsk:
		apiErr = s.applyUpdateAsk(session, actorID, action.Ask)
	case ActionUpdateProfile:
		apiErr = s.applyUpdateProfile(session, actorID, action.Profile)
	case ActionTransferHost:
		apiErr = s.applyTransferHost(session, actorID, action.NewHostID)
	case ActionLeaveSession:
		destroyed, apiErr = s.applyLeave(session, actorID)
	case ActionAdvancePhase:
		apiErr = s.applyAdvancePhase(session, actorID, now)
	default:
		apiErr = apperrors.BadRequest("invalid_action", "unknown action type")
	}
	if apiErr != nil {
		return nil, apiErr
	}

	if destroyed {
		if err := s.repo.DeleteTx(ctx, tx, session.ID); err != nil {
			return nil, apperrors.Internal("failed to delete session")
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return nil, apperrors.Internal("failed to commit transaction")
		}
		return nil, nil
	}

	session.Version++
	session.LastHeartbeat = now
	session.UpdatedAt = now

	if err := s.repo.UpdateTx(ctx, tx, session); err != nil {
		return nil, apperrors.Internal("failed to update session")
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := s.toView(session, now)
	return &view, nil
}

func (s *SessionService) applyVoteExtend(session *model.Session, actorID string, input *VoteExtendInput) *apperrors.APIError {
	if input == nil || input.AskID == "" {
		return apperrors.BadRequest("invalid_payload", "askId is required")
	}
	ask := session.FindAsk(input.AskID)
	if ask == nil || ask.Kind != model.AskKindExtend || ask.Extend == nil {
		return apperrors.NotFound("ask_not_found", "extend suggestion not found")
	}
	if input.Vote != nil && !model.IsValidExtendVote(*input.Vote) {
		return apperrors.BadRequest("invalid_vote", "vote must be yes, no, neutral or null")
	}

	consensus.MergeExtendVote(ask.Extend, actorID, input.Vote, len(session.Participants))
	return nil
}

func (s *SessionService) applyVotePoll(session *model.Session, actorID string, input *VotePollInput) *apperrors.APIError {
	if input == nil || input.AskID == "" {
		return apperrors.BadRequest("invalid_payload", "askId is required")
	}
	ask := session.FindAsk(input.AskID)
	if ask == nil || ask.Kind != model.AskKindPoll || ask.Poll == nil {
		return apperrors.NotFound("ask_not_found", "poll not found")
	}

	switch err := consensus.MergePollVote(ask.Poll, actorID, input.OptionIDs, input.CustomText); err {
	case nil:
		return nil
	case consensus.ErrOptionNotFound:
		return apperrors.NotFound("option_not_found", "poll option not found")
	case consensus.ErrMultipleChoices:
		return apperrors.BadRequest("invalid_vote", "poll accepts a single choice")
	case consensus.ErrCustomForbidden:
		return apperrors.BadRequest("invalid_vote", "poll does not accept custom responses")
	case consensus.ErrPollClosed:
		return apperrors.Conflict("poll_closed", "poll is closed", nil)
	default:
		return apperrors.Internal("failed to merge poll vote")
	}
}

func (s *SessionService) applyAddAsk(session *model.Session, actorID string, input *AskInput, now time.Time) *apperrors.APIError {
	if input == nil {
		return apperrors.BadRequest("invalid_payload", "ask payload is required")
	}

	ask := model.Ask{
		ID:        uuid.NewString(),
		Kind:      input.Kind,
		CreatorID: actorID,
		CreatedAt: now,
	}

	switch input.Kind {
	case model.AskKindExtend:
		if input.Minutes <= 0 {
			return apperrors.BadRequest("invalid_minutes", "extension minutes must be positive")
		}
		ask.Extend = &model.ExtendDetails{
			Minutes: input.Minutes,
			Votes:   []model.ExtendVote{},
			Status:  model.AskStatusPending,
		}
	case model.AskKindPoll:
		poll, apiErr := buildPoll(input)
		if apiErr != nil {
			return apiErr
		}
		ask.Poll = poll
	default:
		return apperrors.BadRequest("invalid_ask_kind", "ask kind must be extend or poll")
	}

	session.ActiveAsks = append(session.ActiveAsks, ask)
	return nil
}

func (s *SessionService) applyUpdateAsk(session *model.Session, actorID string, input *AskInput) *apperrors.APIError {
	if input == nil || input.ID == "" {
		return apperrors.BadRequest("invalid_payload", "ask id is required")
	}
	ask := session.FindAsk(input.ID)
	if ask == nil {
		return apperrors.NotFound("ask_not_found", "ask not found")
	}
	// The host may override any ask to resolve abandoned or ambiguous
	// ones; otherwise only the creator may rewrite it.
	if actorID != ask.CreatorID && actorID != session.HostID {
		return apperrors.Forbidden("not_ask_creator", "only the creator or host may update this ask")
	}
	if input.Kind != "" && input.Kind != ask.Kind {
		return apperrors.BadRequest("invalid_ask_kind", "ask kind cannot change")
	}

	switch ask.Kind {
	case model.AskKindExtend:
		if input.Minutes > 0 {
			ask.Extend.Minutes = input.Minutes
		}
		if input.Status != "" {
			if input.Status != model.AskStatusPending &&
				input.Status != model.AskStatusAccepted &&
				input.Status != model.AskStatusRejected {
				return apperrors.BadRequest("invalid_status", "status must be pending, accepted or rejected")
			}
			ask.Extend.Status = input.Status
		}
	case model.AskKindPoll:
		if question := strings.TrimSpace(input.Question); question != "" {
			ask.Poll.Question = question
		}
		ask.Poll.AllowCustomResponses = input.AllowCustomResponses
		if len(input.Options) > 0 {
			options, apiErr := rebuildPollOptions(ask.Poll, input.Options)
			if apiErr != nil {
				return apiErr
			}
			ask.Poll.Options = options
		}
		if input.Status != "" {
			if input.Status != model.PollStatusActive && input.Status != model.PollStatusClosed {
				return apperrors.BadRequest("invalid_status", "status must be active or closed")
			}
			ask.Poll.Status = input.Status
		}
	}
	return nil
}

func (s *SessionService) applyUpdateProfile(session *model.Session, actorID string, input *ProfileInput) *apperrors.APIError {
	if input == nil {
		return apperrors.BadRequest("invalid_payload", "profile payload is required")
	}
	participant := session.FindParticipant(actorID)
	if participant == nil {
		return apperrors.NotFound("participant_not_found", "participant not found")
	}

	if name := strings.TrimSpace(input.UserName); name != "" {
		participant.UserName = name
		if session.HostID == actorID {
			session.HostName = name
		}
	}
	participant.FocusPreference = input.FocusPreference
	return nil
}

func (s *SessionService) applyTransferHost(session *model.Session, actorID, newHostID string) *apperrors.APIError {
	if actorID != session.HostID {
		return apperrors.Forbidden("not_host", "only the host may transfer host role")
	}
	if newHostID == "" {
		return apperrors.BadRequest("invalid_payload", "newHostId is required")
	}
	target := session.FindParticipant(newHostID)
	if target == nil {
		return apperrors.NotFound("participant_not_found", "new host must already be a participant")
	}
	if newHostID == actorID {
		return nil
	}

	if current := session.FindParticipant(actorID); current != nil {
		current.Role = model.RoleCoworker
	}
	target.Role = model.RoleHost
	session.HostID = target.UserID
	session.HostName = target.UserName
	return nil
}

// applyLeave removes the actor. A departing host hands the role to the
// longest-tenured remaining participant and the join code is rotated,
// since the old code was associated with the departed host. The last
// participant leaving destroys the session.
func (s *SessionService) applyLeave(session *model.Session, actorID string) (bool, *apperrors.APIError) {
	wasHost := session.HostID == actorID

	remaining := make([]model.Participant, 0, len(session.Participants))
	found := false
	for _, participant := range session.Participants {
		if participant.UserID == actorID {
			found = true
			continue
		}
		remaining = append(remaining, participant)
	}
	if !found {
		return false, apperrors.NotFound("participant_not_found", "participant not found")
	}
	session.Participants = remaining

	if len(session.Participants) == 0 {
		return true, nil
	}

	if wasHost {
		oldest := session.OldestParticipant()
		oldest.Role = model.RoleHost
		session.HostID = oldest.UserID
		session.HostName = oldest.UserName
		session.JoinCode = newJoinCode()
	}
	return false, nil
}

func (s *SessionService) applyAdvancePhase(session *model.Session, actorID string, now time.Time) *apperrors.APIError {
	soleParticipant := len(session.Participants) == 1 && session.Participants[0].UserID == actorID
	if actorID != session.HostID && !soleParticipant {
		return apperrors.Forbidden("not_host", "only the session authority may advance the phase")
	}
	if session.CompletedAt != nil {
		return apperrors.Conflict("session_completed", "schedule already completed", nil)
	}
	if session.CurrentPhaseIndex < 0 || session.CurrentPhaseIndex >= len(session.Schedule) {
		return apperrors.Internal("session phase index out of range")
	}

	phase := session.Schedule[session.CurrentPhaseIndex]
	if schedule.PhaseRemaining(phase, session.PhaseStartedAt, now) > 0 {
		return apperrors.BadRequest("phase_not_complete", "current phase still has time remaining")
	}

	if session.CurrentPhaseIndex+1 < len(session.Schedule) {
		session.CurrentPhaseIndex++
		session.PhaseStartedAt = now
		return nil
	}

	completed := now
	session.CompletedAt = &completed
	return nil
}

func buildPoll(input *AskInput) (*model.PollDetails, *apperrors.APIError) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, apperrors.BadRequest("invalid_question", "poll question is required")
	}
	if !model.IsValidPollKind(input.PollKind) {
		return nil, apperrors.BadRequest("invalid_poll_kind", "poll kind must be closed, choice or selection")
	}

	options := make([]model.PollOption, 0, len(input.Options))
	for _, option := range input.Options {
		text := strings.TrimSpace(option.Text)
		if text == "" {
			return nil, apperrors.BadRequest("invalid_option", "poll option text is required")
		}
		options = append(options, model.PollOption{
			ID:    uuid.NewString(),
			Text:  text,
			Votes: []model.PollVote{},
		})
	}

	// Closed polls are plain yes/no questions; the options are implied.
	if input.PollKind == model.PollKindClosed && len(options) == 0 {
		options = []model.PollOption{
			{ID: uuid.NewString(), Text: "Yes", Votes: []model.PollVote{}},
			{ID: uuid.NewString(), Text: "No", Votes: []model.PollVote{}},
		}
	}
	if len(options) < 2 {
		return nil, apperrors.BadRequest("invalid_options", "poll requires at least two options")
	}

	return &model.PollDetails{
		Question:             question,
		Kind:                 input.PollKind,
		AllowCustomResponses: input.AllowCustomResponses,
		Options:              options,
		Status:               model.PollStatusActive,
	}, nil
}

// rebuildPollOptions replaces a poll's option list, carrying votes over
// for options whose id survives the replace.
func rebuildPollOptions(poll *model.PollDetails, inputs []AskOptionInput) ([]model.PollOption, *apperrors.APIError) {
	options := make([]model.PollOption, 0, len(inputs))
	for _, input := range inputs {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return nil, apperrors.BadRequest("invalid_option", "poll option text is required")
		}

		option := model.PollOption{ID: input.ID, Text: text, Votes: []model.PollVote{}}
		if option.ID == "" {
			option.ID = uuid.NewString()
		} else {
			for _, existing := range poll.Options {
				if existing.ID == option.ID {
					option.Votes = existing.Votes
					break
				}
			}
		}
		options = append(options, option)
	}
	if len(options) < 2 {
		return nil, apperrors.BadRequest("invalid_options", "poll requires at least two options")
	}
	return options, nil
}

func (s *SessionService) resolveUserName(ctx context.Context, userID, provided string) (string, *apperrors.APIError) {
	if name := strings.TrimSpace(provided); name != "" {
		return name, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err == repository.ErrNotFound {
		return "", apperrors.Unauthorized("unknown actor")
	}
	if err != nil {
		return "", apperrors.Internal("failed to get user")
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Email, nil
}

func (s *SessionService) toView(session *model.Session, now time.Time) SessionView {
	return SessionView{
		Session:    *session,
		Position:   s.position(session, now),
		ServerTime: now,
	}
}

func (s *SessionService) position(session *model.Session, now time.Time) PositionView {
	index := session.CurrentPhaseIndex
	if index < 0 || index >= len(session.Schedule) {
		index = 0
	}

	if session.CompletedAt != nil || len(session.Schedule) == 0 {
		return PositionView{State: schedule.StateEnded, PhaseIndex: index}
	}

	phase := session.Schedule[index]
	if now.Before(session.PhaseStartedAt) && index == 0 {
		return PositionView{
			State:             schedule.StatePending,
			PhaseIndex:        0,
			RemainingSeconds:  int(phase.Duration().Seconds()),
			UntilStartSeconds: int(session.PhaseStartedAt.Sub(now).Seconds()),
		}
	}

	remaining := schedule.PhaseRemaining(phase, session.PhaseStartedAt, now)
	return PositionView{
		State:            schedule.StateRunning,
		PhaseIndex:       index,
		RemainingSeconds: int(remaining.Seconds()),
	}
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
