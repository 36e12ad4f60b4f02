package main

import (
	"context"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"cowork/backend/internal/config"
	"cowork/backend/internal/db"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/service"
)

// One-shot session sweep, for cron or manual cleanup alongside the
// server's own periodic sweeper.
func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	sessionRepo := repository.NewSessionRepository(database)
	cleanupService := service.NewCleanupService(
		sessionRepo,
		cfg.StaleSessionTTL,
		cfg.SweepInterval,
		clockwork.NewRealClock(),
		logger,
	)

	summary := cleanupService.Sweep(context.Background())
	logger.Info().
		Int("scanned", summary.Scanned).
		Int("repaired", summary.Repaired).
		Int("deleted", summary.Deleted).
		Msg("sweep complete")
}
