package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// API token configuration (bearer tokens for non-UI clients)
	JWTSecret string

	// Metrics backend configuration
	MetricsURL          string
	MetricsCacheBackend string // memory or redis

	// Redis (metrics query cache backend and asynq broker)
	RedisAddr         string
	WorkerConcurrency int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "3000"),
		DBType:              getEnv("DB_TYPE", "mysql"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "3306"),
		DBDatabase:          getEnv("DB_DATABASE", ""),
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:   getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		AuthzURL:            getEnv("AUTHZ_URL", ""),
		AuthzClientID:       getEnv("AUTHZ_CLIENT_ID", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		MetricsURL:          getEnv("METRICS_URL", ""),
		MetricsCacheBackend: getEnv("METRICS_CACHE_BACKEND", "memory"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		WorkerConcurrency:   getEnvAsInt("WORKER_CONCURRENCY", 5),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" && cfg.DBType != "sqlite" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.AuthzURL == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("one of AUTHZ_URL or JWT_SECRET is required")
	}
	if cfg.AuthzURL != "" && cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required when AUTHZ_URL is set")
	}
	if cfg.MetricsCacheBackend == "redis" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required when METRICS_CACHE_BACKEND=redis")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
