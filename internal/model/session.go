package model

import "time"

const (
	RoleHost     = "host"
	RoleCoworker = "coworker"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Participant is one member of a live session. Role changes only
// through host transfer or leave-induced promotion.
type Participant struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	JoinTime        time.Time `json:"joinTime"`
	Role            string    `json:"role"`
	FocusPreference string    `json:"focusPreference,omitempty"`
}

// Session is the authoritative shared record of a running session.
// While the session exists, exactly one participant holds the host
// role and CurrentPhaseIndex is a valid index into Schedule.
type Session struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	HostID            string        `json:"hostId"`
	HostName          string        `json:"hostName"`
	Schedule          Schedule      `json:"schedule"`
	CurrentPhaseIndex int           `json:"currentPhaseIndex"`
	PhaseStartedAt    time.Time     `json:"phaseStartedAt"`
	Participants      []Participant `json:"participants"`
	ActiveAsks        []Ask         `json:"activeAsks"`
	Visibility        string        `json:"visibility"`
	JoinCode          string        `json:"joinCode"`
	LastHeartbeat     time.Time     `json:"lastHeartbeat"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	Version           int           `json:"version"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

func (s *Session) FindParticipant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

func (s *Session) HasParticipant(userID string) bool {
	return s.FindParticipant(userID) != nil
}

func (s *Session) FindAsk(askID string) *Ask {
	for i := range s.ActiveAsks {
		if s.ActiveAsks[i].ID == askID {
			return &s.ActiveAsks[i]
		}
	}
	return nil
}

// OldestParticipant returns the participant with the earliest join
// time, used for leave-induced host promotion and host repair.
func (s *Session) OldestParticipant() *Participant {
	var oldest *Participant
	for i := range s.Participants {
		if oldest == nil || s.Participants[i].JoinTime.Before(oldest.JoinTime) {
			oldest = &s.Participants[i]
		}
	}
	return oldest
}

func IsValidVisibility(visibility string) bool {
	return visibility == VisibilityPublic || visibility == VisibilityPrivate
}
