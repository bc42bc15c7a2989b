package db

import (
	"github.com/rs/zerolog/log"

	"photo-listing-portal/internal/config"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/user"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&domain.User{},
		&domain.Listing{},
		&domain.Photo{},
		&domain.Submission{},
	)

	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Msg("database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	if config.AppConfig.Environment != "development" {
		return
	}

	userRepo := user.NewRepository(AppDb)

	admin := &domain.User{
		Name:     "Portal Admin",
		Email:    "admin@example.com",
		Password: "admin123",
	}

	if _, err := userRepo.FindByEmail(admin.Email); err == nil {
		log.Info().Str("email", admin.Email).Msg("seed admin already exists")
		return
	}

	userService := user.NewService(userRepo)
	if err := userService.Register(admin); err != nil {
		log.Error().Err(err).Msg("error creating seed admin")
		return
	}
	// registration always starts users as ADVISOR, promote the seed account
	if err := userRepo.UpdateRole(admin.ID, domain.RoleAdmin); err != nil {
		log.Error().Err(err).Msg("error promoting seed admin")
		return
	}
	log.Info().Str("email", admin.Email).Msg("created seed admin")
}
