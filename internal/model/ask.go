package model

import (
	"strings"
	"time"
)

const (
	AskKindExtend = "extend"
	AskKindPoll   = "poll"
)

const (
	ExtendVoteYes     = "yes"
	ExtendVoteNo      = "no"
	ExtendVoteNeutral = "neutral"
)

const (
	AskStatusPending  = "pending"
	AskStatusAccepted = "accepted"
	AskStatusRejected = "rejected"
)

const (
	PollKindClosed    = "closed"
	PollKindChoice    = "choice"
	PollKindSelection = "selection"
)

const (
	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

// CustomOptionPrefix marks poll options synthesized from a
// participant's free-text response; the creator's user id follows the
// prefix, so each participant owns at most one custom option per poll.
const CustomOptionPrefix = "custom-"

// Ask is a collaborative decision request active within a session.
// Kind discriminates the variants; exactly one of Extend and Poll is
// set, matching Kind.
type Ask struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	CreatorID string         `json:"creatorId"`
	CreatedAt time.Time      `json:"createdAt"`
	Extend    *ExtendDetails `json:"extend,omitempty"`
	Poll      *PollDetails   `json:"poll,omitempty"`
}

// ExtendDetails is a suggestion to extend the current phase. At most
// one vote per user; status follows the ceil(N/2) participant
// threshold.
type ExtendDetails struct {
	Minutes int          `json:"minutes"`
	Votes   []ExtendVote `json:"votes"`
	Status  string       `json:"status"`
}

type ExtendVote struct {
	UserID string `json:"userId"`
	Vote   string `json:"vote"`
}

type PollDetails struct {
	Question             string       `json:"question"`
	Kind                 string       `json:"kind"`
	AllowCustomResponses bool         `json:"allowCustomResponses"`
	Options              []PollOption `json:"options"`
	Status               string       `json:"status"`
}

type PollOption struct {
	ID    string     `json:"id"`
	Text  string     `json:"text"`
	Votes []PollVote `json:"votes"`
}

type PollVote struct {
	UserID string `json:"userId"`
}

func (o PollOption) IsCustom() bool {
	return strings.HasPrefix(o.ID, CustomOptionPrefix)
}

// CustomOptionID returns the synthesized id of the custom option owned
// by the given user.
func CustomOptionID(userID string) string {
	return CustomOptionPrefix + userID
}

// IsSingleChoice reports whether the poll allows at most one vote per
// user across its whole option set.
func (p *PollDetails) IsSingleChoice() bool {
	return p.Kind == PollKindClosed || p.Kind == PollKindChoice
}

func IsValidExtendVote(vote string) bool {
	return vote == ExtendVoteYes || vote == ExtendVoteNo || vote == ExtendVoteNeutral
}

func IsValidPollKind(kind string) bool {
	return kind == PollKindClosed || kind == PollKindChoice || kind == PollKindSelection
}
