package main

import (
	"os"

	"github.com/rs/zerolog"

	"cowork/backend/internal/config"
	"cowork/backend/internal/db"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	logger.Info().Msg("migrations applied successfully")
}
