package main

import (
	"context"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"cowork/backend/internal/config"
	"cowork/backend/internal/db"
	"cowork/backend/internal/handler"
	"cowork/backend/internal/repository"
	"cowork/backend/internal/router"
	"cowork/backend/internal/service"
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

	clock := clockwork.NewRealClock()

	userRepo := repository.NewUserRepository(database)
	templateRepo := repository.NewTemplateRepository(database)
	sessionRepo := repository.NewSessionRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	templateService := service.NewTemplateService(templateRepo, clock)
	sessionService := service.NewSessionService(sessionRepo, templateRepo, userRepo, clock)
	cleanupService := service.NewCleanupService(sessionRepo, cfg.StaleSessionTTL, cfg.SweepInterval, clock, logger)

	go cleanupService.Run(context.Background())

	authHandler := handler.NewAuthHandler(authService)
	templateHandler := handler.NewTemplateHandler(templateService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	engine := router.New(authService, authHandler, templateHandler, sessionHandler, cfg.CORSOrigins)
	logger.Info().Str("port", cfg.Port).Msg("backend listening")
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("run server")
	}
}
