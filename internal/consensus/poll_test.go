package consensus

import (
	"testing"

	"cowork/backend/internal/model"
)

func selectionPoll() *model.PollDetails {
	return &model.PollDetails{
		Question: "Which playlist?",
		Kind:     model.PollKindSelection,
		Status:   model.PollStatusActive,
		Options: []model.PollOption{
			{ID: "opt-a", Text: "Lo-fi"},
			{ID: "opt-b", Text: "Classical"},
			{ID: "opt-c", Text: "Silence"},
		},
	}
}

func choicePoll() *model.PollDetails {
	poll := selectionPoll()
	poll.Kind = model.PollKindChoice
	return poll
}

func votersOf(poll *model.PollDetails, optionID string) []string {
	for _, option := range poll.Options {
		if option.ID != optionID {
			continue
		}
		ids := make([]string, 0, len(option.Votes))
		for _, v := range option.Votes {
			ids = append(ids, v.UserID)
		}
		return ids
	}
	return nil
}

func TestSelectionPollIndependentOptions(t *testing.T) {
	poll := selectionPoll()

	if err := MergePollVote(poll, "user-a", []string{"opt-a", "opt-c"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(votersOf(poll, "opt-a")) != 1 || len(votersOf(poll, "opt-c")) != 1 {
		t.Fatal("expected votes on both selected options")
	}

	// Re-submitting with only opt-c removes the vote from opt-a.
	if err := MergePollVote(poll, "user-a", []string{"opt-c"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(votersOf(poll, "opt-a")) != 0 {
		t.Fatal("expected opt-a vote removed")
	}
	if len(votersOf(poll, "opt-c")) != 1 {
		t.Fatal("expected opt-c vote kept")
	}
}

func TestChoicePollSwitchesAnswer(t *testing.T) {
	poll := choicePoll()

	if err := MergePollVote(poll, "user-a", []string{"opt-a"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := MergePollVote(poll, "user-a", []string{"opt-b"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if len(votersOf(poll, "opt-a")) != 0 {
		t.Fatal("expected previous answer cleared")
	}
	if len(votersOf(poll, "opt-b")) != 1 {
		t.Fatal("expected new answer recorded")
	}
}

func TestChoicePollRejectsMultipleChoices(t *testing.T) {
	poll := choicePoll()
	err := MergePollVote(poll, "user-a", []string{"opt-a", "opt-b"}, nil)
	if err != ErrMultipleChoices {
		t.Fatalf("expected ErrMultipleChoices, got %v", err)
	}
	if len(votersOf(poll, "opt-a")) != 0 || len(votersOf(poll, "opt-b")) != 0 {
		t.Fatal("failed merge must not mutate the poll")
	}
}

func TestUnknownOptionRejectedBeforeMutation(t *testing.T) {
	poll := selectionPoll()
	if err := MergePollVote(poll, "user-a", []string{"opt-a"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	err := MergePollVote(poll, "user-a", []string{"opt-x"}, nil)
	if err != ErrOptionNotFound {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	if len(votersOf(poll, "opt-a")) != 1 {
		t.Fatal("failed merge must keep prior votes")
	}
}

func TestCustomOptionLifecycle(t *testing.T) {
	poll := selectionPoll()
	poll.AllowCustomResponses = true

	text := "Rain sounds"
	if err := MergePollVote(poll, "user-a", nil, &text); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	customID := model.CustomOptionID("user-a")
	if len(votersOf(poll, customID)) != 1 {
		t.Fatal("expected vote on the new custom option")
	}

	// Editing the text keeps the option id, so no votes are lost.
	text = "Heavy rain sounds"
	if err := MergePollVote(poll, "user-a", nil, &text); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	for _, option := range poll.Options {
		if option.ID == customID && option.Text != "Heavy rain sounds" {
			t.Fatalf("expected text updated in place, got %q", option.Text)
		}
	}

	// Another user abandoning their custom option prunes it.
	otherText := "Jazz"
	if err := MergePollVote(poll, "user-b", nil, &otherText); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := MergePollVote(poll, "user-b", []string{"opt-a"}, nil); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	for _, option := range poll.Options {
		if option.ID == model.CustomOptionID("user-b") {
			t.Fatal("expected abandoned custom option pruned")
		}
	}
	if len(votersOf(poll, customID)) != 1 {
		t.Fatal("expected user-a custom option untouched")
	}
}

func TestCustomAndFixedVotesCoexistOnlyForSelection(t *testing.T) {
	poll := selectionPoll()
	poll.AllowCustomResponses = true
	text := "Rain sounds"
	if err := MergePollVote(poll, "user-a", []string{"opt-a"}, &text); err != nil {
		t.Fatalf("selection poll should allow custom plus fixed: %v", err)
	}

	single := choicePoll()
	single.AllowCustomResponses = true
	err := MergePollVote(single, "user-a", []string{"opt-a"}, &text)
	if err != ErrMultipleChoices {
		t.Fatalf("expected ErrMultipleChoices for choice poll, got %v", err)
	}
}

func TestCustomResponseRequiresAllowance(t *testing.T) {
	poll := selectionPoll()
	text := "Rain sounds"
	if err := MergePollVote(poll, "user-a", nil, &text); err != ErrCustomForbidden {
		t.Fatalf("expected ErrCustomForbidden, got %v", err)
	}
}

func TestClosedPollRejectsVotes(t *testing.T) {
	poll := selectionPoll()
	poll.Status = model.PollStatusClosed
	if err := MergePollVote(poll, "user-a", []string{"opt-a"}, nil); err != ErrPollClosed {
		t.Fatalf("expected ErrPollClosed, got %v", err)
	}
}
