package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/anomologita/internal/bootstrap"
	"anoa.com/anomologita/internal/config"
	"anoa.com/anomologita/internal/server"
	"anoa.com/anomologita/pkg/database"
	"anoa.com/anomologita/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := bootstrap.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := bootstrap.SeedUniversities(db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed universities")
	}
	if cfg.IsDevelopment() {
		if err := bootstrap.SeedDevUsers(db); err != nil {
			log.Fatal().Err(err).Msg("failed to seed dev users")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		// Cooldowns and caching are optional; keep serving without them.
		log.Warn().Err(err).Msg("redis unavailable, continuing without it")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv := server.NewServer(cfg, db, redisClient)
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}
