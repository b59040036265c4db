package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// config is the client configuration read from the environment.
type config struct {
	APIURL        string
	WebSocketURL  string
	StoragePath   string
	NATSPort      int
	HTTPTimeout   time.Duration
	ChatQueueSize int
	LogLevel      string

	DevBackend     bool
	DevBackendPort int
	DevBackendDB   string
	DevJWTSecret   string
	DevSeed        bool
}

func loadConfig() config {
	cfg := config{
		StoragePath:    getEnv("STORAGE_PATH", "/tmp/sportsedu-client"),
		NATSPort:       getEnvInt("NATS_PORT", 14222),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		ChatQueueSize:  getEnvInt("CHAT_QUEUE_SIZE", 64),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "error")),
		DevBackend:     getEnvBool("DEV_BACKEND", false),
		DevBackendPort: getEnvInt("DEV_BACKEND_PORT", 8000),
		DevBackendDB:   getEnv("DEV_BACKEND_DB", ":memory:"),
		DevJWTSecret:   getEnv("DEV_JWT_SECRET", "sportsedu-dev-secret"),
		DevSeed:        getEnvBool("DEV_SEED", true),
	}

	// The local backend replaces the default addresses unless they are set explicitly.
	host := "127.0.0.1:8000"
	if cfg.DevBackend {
		host = fmt.Sprintf("127.0.0.1:%d", cfg.DevBackendPort)
	}
	cfg.APIURL = getEnv("API_URL", "http://"+host+"/api")
	cfg.WebSocketURL = getEnv("WEBSOCKET_URL", "ws://"+host)
	return cfg
}

// verbose reports whether info logs are shown; otherwise only errors reach the terminal.
func (c config) verbose() bool {
	switch c.LogLevel {
	case "info", "debug":
		return true
	case "error":
		return false
	default:
		log.Printf("Warning: unknown LOG_LEVEL %q, using error", c.LogLevel)
		return false
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}
