package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration. Built once at process start
// and passed to constructors; read-only afterwards.
type Config struct {
	TelegramToken     string
	AdminID           int64
	SupportUsername   string
	FreeAnalysisLimit int

	OpenAIAPIKey string

	// Postgres connection. When DBHost is empty the bot falls back to the
	// JSON file store at UsersFile.
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	UsersFile  string

	CandleCount    int
	RequestTimeout int // seconds
	LogLevel       string
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminID:           getEnvInt64WithDefault("ADMIN_ID", 0),
		SupportUsername:   getEnvWithDefault("SUPPORT_USERNAME", "@sup_cry"),
		FreeAnalysisLimit: getEnvIntWithDefault("FREE_ANALYSIS_LIMIT", 1),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            getEnvWithDefault("DB_PORT", "5432"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            os.Getenv("DB_NAME"),
		DBSSLMode:         getEnvWithDefault("DB_SSLMODE", "disable"),
		UsersFile:         getEnvWithDefault("USERS_FILE", "users.json"),
		CandleCount:       getEnvIntWithDefault("CANDLE_COUNT", 200),
		RequestTimeout:    getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set in environment")
	}

	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
