package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"cowork/backend/internal/model"
	"cowork/backend/internal/repository"
)

// CleanupService is the out-of-band sweep over all sessions: it
// repairs sessions whose recorded host is missing from the roster,
// deletes empty sessions, and deletes sessions whose heartbeat went
// stale. Per-session failures are logged and retried on the next
// sweep; they are never surfaced to users.
type CleanupService struct {
	repo     *repository.SessionRepository
	staleTTL time.Duration
	interval time.Duration
	clock    clockwork.Clock
	logger   zerolog.Logger
}

func NewCleanupService(
	repo *repository.SessionRepository,
	staleTTL time.Duration,
	interval time.Duration,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *CleanupService {
	return &CleanupService{
		repo:     repo,
		staleTTL: staleTTL,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

type SweepSummary struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Deleted  int `json:"deleted"`
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Dur("stale_ttl", s.staleTTL).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.Chan():
			summary := s.Sweep(ctx)
			s.logger.Info().
				Int("scanned", summary.Scanned).
				Int("repaired", summary.Repaired).
				Int("deleted", summary.Deleted).
				Msg("session sweep finished")
		}
	}
}

// Sweep scans every session once. Each session is re-read and decided
// inside its own transaction so a record mutated mid-sweep is never
// judged from a stale copy, and running the sweep twice on a
// consistent store is a no-op.
func (s *CleanupService) Sweep(ctx context.Context) SweepSummary {
	var summary SweepSummary

	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed to list sessions")
		return summary
	}

	for _, id := range ids {
		summary.Scanned++
		if err := s.sweepSession(ctx, id, &summary); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("sweep skipped session")
		}
	}
	return summary
}

func (s *CleanupService) sweepSession(ctx context.Context, id string, summary *SweepSummary) error {
	now := s.clock.Now().UTC()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	session, err := s.repo.GetTx(ctx, tx, id)
	if err == repository.ErrNotFound {
		// Deleted since we listed it.
		return nil
	}
	if err != nil {
		return err
	}

	if len(session.Participants) == 0 {
		if err := s.repo.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		summary.Deleted++
		s.logger.Info().Str("session_id", id).Msg("deleted empty session")
		return tx.Commit()
	}

	if now.Sub(session.LastHeartbeat) > s.staleTTL {
		if err := s.repo.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		summary.Deleted++
		s.logger.Info().
			Str("session_id", id).
			Time("last_heartbeat", session.LastHeartbeat).
			Msg("deleted stale session")
		return tx.Commit()
	}

	if !session.HasParticipant(session.HostID) {
		repairHost(session)
		session.Version++
		session.UpdatedAt = now
		if err := s.repo.UpdateTx(ctx, tx, session); err != nil {
			return err
		}
		summary.Repaired++
		s.logger.Info().
			Str("session_id", id).
			Str("new_host_id", session.HostID).
			Msg("repaired session with missing host")
		return tx.Commit()
	}

	return tx.Commit()
}

// repairHost promotes the longest-tenured participant after the
// recorded host vanished without a leave action.
func repairHost(session *model.Session) {
	oldest := session.OldestParticipant()
	oldest.Role = model.RoleHost
	session.HostID = oldest.UserID
	session.HostName = oldest.UserName
}
