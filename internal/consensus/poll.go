package consensus

import (
	"errors"
	"strings"

	"cowork/backend/internal/model"
)

var (
	ErrPollClosed      = errors.New("poll is closed")
	ErrOptionNotFound  = errors.New("poll option not found")
	ErrMultipleChoices = errors.New("poll accepts a single choice")
	ErrCustomForbidden = errors.New("poll does not accept custom responses")
)

// MergePollVote replaces all of the actor's votes on a poll with
// exactly the supplied option set. Supplying an empty set unchecks
// everything. A non-empty customText selects the actor's own custom
// option, creating it or updating its text in place. Validation runs
// before any mutation, so a failed merge leaves the poll untouched.
func MergePollVote(poll *model.PollDetails, actorID string, optionIDs []string, customText *string) error {
	if poll.Status == model.PollStatusClosed {
		return ErrPollClosed
	}

	custom := ""
	if customText != nil {
		custom = strings.TrimSpace(*customText)
	}
	if custom != "" && !poll.AllowCustomResponses {
		return ErrCustomForbidden
	}

	selected := make(map[string]struct{}, len(optionIDs))
	customID := model.CustomOptionID(actorID)
	for _, id := range optionIDs {
		if id == customID && custom != "" {
			continue
		}
		if findOption(poll, id) == nil {
			return ErrOptionNotFound
		}
		selected[id] = struct{}{}
	}

	choices := len(selected)
	if custom != "" {
		choices++
	}
	if poll.IsSingleChoice() && choices > 1 {
		return ErrMultipleChoices
	}

	if custom != "" {
		if existing := findOption(poll, customID); existing != nil {
			existing.Text = custom
		} else {
			poll.Options = append(poll.Options, model.PollOption{ID: customID, Text: custom})
		}
		selected[customID] = struct{}{}
	}

	for i := range poll.Options {
		option := &poll.Options[i]
		votes := option.Votes[:0]
		for _, v := range option.Votes {
			if v.UserID != actorID {
				votes = append(votes, v)
			}
		}
		if _, ok := selected[option.ID]; ok {
			votes = append(votes, model.PollVote{UserID: actorID})
		}
		option.Votes = votes
	}

	pruneCustomOptions(poll, actorID)
	return nil
}

// pruneCustomOptions drops custom options that no longer hold any
// votes, except the acting viewer's own, so abandoned custom text does
// not accumulate while a participant is still editing theirs.
func pruneCustomOptions(poll *model.PollDetails, actorID string) {
	options := poll.Options[:0]
	for _, option := range poll.Options {
		if option.IsCustom() && len(option.Votes) == 0 && option.ID != model.CustomOptionID(actorID) {
			continue
		}
		options = append(options, option)
	}
	poll.Options = options
}

func findOption(poll *model.PollDetails, id string) *model.PollOption {
	for i := range poll.Options {
		if poll.Options[i].ID == id {
			return &poll.Options[i]
		}
	}
	return nil
}
