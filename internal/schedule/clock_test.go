package schedule

import (
	"testing"
	"time"

	"cowork/backend/internal/model"
)

func classicSchedule() model.Schedule {
	return model.Schedule{
		{ID: "p1", Title: "Focus", Kind: model.PhaseFocus, DurationMinutes: 25},
		{ID: "p2", Title: "Break", Kind: model.PhaseBreak, DurationMinutes: 5},
		{ID: "p3", Title: "Focus", Kind: model.PhaseFocus, DurationMinutes: 25},
	}
}

func TestPositionAtWalksPhases(t *testing.T) {
	s := classicSchedule()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// 26 minutes in: inside the break, about 4 minutes left.
	pos := PositionAt(s, start, start.Add(26*time.Minute))
	if pos.State != StateRunning {
		t.Fatalf("expected running, got %s", pos.State)
	}
	if pos.PhaseIndex != 1 {
		t.Fatalf("expected phase index 1, got %d", pos.PhaseIndex)
	}
	if pos.Remaining != 4*time.Minute {
		t.Fatalf("expected 4m remaining, got %s", pos.Remaining)
	}
}

func TestPositionAtFirstAndLastPhase(t *testing.T) {
	s := classicSchedule()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	pos := PositionAt(s, start, start)
	if pos.State != StateRunning || pos.PhaseIndex != 0 || pos.Remaining != 25*time.Minute {
		t.Fatalf("unexpected position at start: %+v", pos)
	}

	pos = PositionAt(s, start, start.Add(55*time.Minute))
	if pos.State != StateEnded {
		t.Fatalf("expected ended at total duration, got %s", pos.State)
	}
	if pos.PhaseIndex != 2 {
		t.Fatalf("expected last phase index, got %d", pos.PhaseIndex)
	}
}

func TestPositionAtFutureStart(t *testing.T) {
	s := classicSchedule()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	pos := PositionAt(s, start, start.Add(-10*time.Minute))
	if pos.State != StatePending {
		t.Fatalf("expected pending, got %s", pos.State)
	}
	if pos.UntilStart != 10*time.Minute {
		t.Fatalf("expected 10m until start, got %s", pos.UntilStart)
	}
	if pos.Remaining != 25*time.Minute {
		t.Fatalf("expected first phase duration as remaining, got %s", pos.Remaining)
	}
}

func TestPositionAtZeroDuration(t *testing.T) {
	now := time.Now().UTC()

	pos := PositionAt(model.Schedule{}, now, now)
	if pos.State != StateEnded {
		t.Fatalf("expected empty schedule to be ended, got %s", pos.State)
	}

	zero := model.Schedule{{ID: "p1", Kind: model.PhaseFocus, DurationMinutes: 0}}
	pos = PositionAt(zero, now, now)
	if pos.State != StateEnded {
		t.Fatalf("expected zero-duration schedule to be ended, got %s", pos.State)
	}
}

func TestLoopingPositionAtWrapsAround(t *testing.T) {
	s := classicSchedule()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	total := s.TotalDuration()

	if total != 55*time.Minute {
		t.Fatalf("expected 55m total, got %s", total)
	}

	// Two full cycles plus 26 minutes lands in the break again.
	pos := LoopingPositionAt(s, start, start.Add(2*total+26*time.Minute))
	if pos.State != StateRunning || pos.PhaseIndex != 1 {
		t.Fatalf("unexpected wrapped position: %+v", pos)
	}
	if pos.Remaining != 4*time.Minute {
		t.Fatalf("expected 4m remaining after wrap, got %s", pos.Remaining)
	}

	// Exactly on the cycle boundary restarts phase zero.
	pos = LoopingPositionAt(s, start, start.Add(total))
	if pos.PhaseIndex != 0 || pos.Remaining != 25*time.Minute {
		t.Fatalf("unexpected boundary position: %+v", pos)
	}
}

func TestTotalDurationMatchesProjection(t *testing.T) {
	s := classicSchedule()
	if s.TotalMinutes() != 55 {
		t.Fatalf("expected 55 total minutes, got %d", s.TotalMinutes())
	}
	if time.Duration(s.TotalMinutes())*time.Minute != s.TotalDuration() {
		t.Fatal("minute sum and duration sum disagree")
	}
}
