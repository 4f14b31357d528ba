package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	// Client side
	APIBaseURL     string
	SocketURL      string
	AuthToken      string
	TypingDebounce time.Duration
	TypingTTL      time.Duration // 0 disables remote typing expiry
	SendExpiry     time.Duration // how long an unacknowledged optimistic send may linger

	// Stub server side
	ServerPort string
	JWTSecret  string
	JWTExpiry  int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		SocketURL:      getEnv("SOCKET_URL", "ws://localhost:8080/ws"),
		AuthToken:      getEnv("AUTH_TOKEN", ""),
		TypingDebounce: getEnvAsDuration("TYPING_DEBOUNCE", 3*time.Second),
		TypingTTL:      getEnvAsDuration("TYPING_TTL", 10*time.Second),
		SendExpiry:     getEnvAsDuration("SEND_EXPIRY", 10*time.Second),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:      getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
