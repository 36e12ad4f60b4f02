// Package consensus holds the pure decision logic for session asks.
// Merges are commutative and idempotent per user, so the gateway's
// linearization order across users never changes the converged result.
package consensus

import "cowork/backend/internal/model"

// MergeExtendVote replaces the user's vote on an extend suggestion and
// recomputes its status against the current participant count. A nil
// vote removes the user's vote. Last write wins per user; other users'
// votes are untouched.
func MergeExtendVote(details *model.ExtendDetails, userID string, vote *string, participantCount int) {
	votes := details.Votes[:0]
	for _, v := range details.Votes {
		if v.UserID != userID {
			votes = append(votes, v)
		}
	}
	if vote != nil {
		votes = append(votes, model.ExtendVote{UserID: userID, Vote: *vote})
	}
	details.Votes = votes
	details.Status = ResolveExtendStatus(details.Votes, participantCount)
}

// ResolveExtendStatus computes the suggestion's status from the full
// vote list. The threshold is a majority of the current participant
// roster, ceil(N/2), not a majority of cast votes; neutral votes count
// toward neither side. A previously reached status reverts to pending
// if the roster has since grown past the vote counts.
func ResolveExtendStatus(votes []model.ExtendVote, participantCount int) string {
	yes, no := 0, 0
	for _, v := range votes {
		switch v.Vote {
		case model.ExtendVoteYes:
			yes++
		case model.ExtendVoteNo:
			no++
		}
	}

	threshold := (participantCount + 1) / 2
	if threshold < 1 {
		threshold = 1
	}

	switch {
	case yes >= threshold:
		return model.AskStatusAccepted
	case no >= threshold:
		return model.AskStatusRejected
	default:
		return model.AskStatusPending
	}
}
