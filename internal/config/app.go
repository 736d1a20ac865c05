package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"workpal/internal/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Protect  ProtectConfig
	Session  SessionConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds cache store configuration
type RedisConfig struct {
	URL string
	// TTL is the sliding idle expiry applied to every cache entry.
	TTL time.Duration
}

// ProtectConfig holds encryption gateway configuration.
// An empty BaseURL disables encryption entirely (plaintext pass-through).
type ProtectConfig struct {
	BaseURL string
	Auth    string
	Timeout time.Duration
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	Secret          []byte
	TokenExpiration time.Duration
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	// Optional .env for local runs; env vars win in deployed environments
	if err := godotenv.Load(); err == nil {
		logger.Log.Debug("Loaded configuration from .env file")
	}

	config := &AppConfig{}

	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	config.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "workpal"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	config.Redis = RedisConfig{
		URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		TTL: getEnvAsDuration("REDIS_TTL", 15*time.Minute),
	}

	protectURL := os.Getenv("PROTECT_BASE_URL")
	if protectURL == "" {
		logger.Log.Warn("PROTECT_BASE_URL not set; content encryption disabled")
	}
	config.Protect = ProtectConfig{
		BaseURL: protectURL,
		Auth:    os.Getenv("PROTECT_AUTH"),
		Timeout: getEnvAsDuration("PROTECT_TIMEOUT", 15*time.Second),
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable must be set")
	}
	if len(sessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters (current length: %d)", len(sessionSecret))
	}
	config.Session = SessionConfig{
		Secret:          []byte(sessionSecret),
		TokenExpiration: getEnvAsDuration("SESSION_TOKEN_EXPIRATION", 24*time.Hour),
	}

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
