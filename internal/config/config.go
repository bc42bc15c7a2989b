package config

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string
	BaseURL     string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// JWT configuration
	JWTSecret string

	// Shared secret for the externally scheduled retention sweep
	CronSecret string

	// Blob storage root for originals and thumbnails
	StorageDir string

	// Notification configuration
	ListingsTeamEmail string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	SenderEmail       string

	// Crash reporting
	SentryDSN string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Msg("error loading .env file")
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		log.Info().Msg("generated random JWT secret")
	}

	AppConfig = Config{
		ServerPort:        getEnv("PORT", "8080"),
		Environment:       getEnv("ENV", "development"),
		BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "listing_portal"),
		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		JWTSecret:         jwtSecret,
		CronSecret:        os.Getenv("CRON_SECRET"),
		StorageDir:        getEnv("STORAGE_DIR", ".data"),
		ListingsTeamEmail: os.Getenv("LISTINGS_TEAM_EMAIL"),
		AzureTenantID:     os.Getenv("AZURE_AD_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_AD_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_AD_CLIENT_SECRET"),
		SenderEmail:       os.Getenv("SENDER_EMAIL"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// generateRandomSecret generates a random secret of the specified length
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secret := make([]byte, length)
	for i := range secret {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		secret[i] = charset[n.Int64()]
	}
	return string(secret)
}
