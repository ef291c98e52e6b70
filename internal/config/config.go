// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoDBURI   string
	DatabaseName string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RequestTimeout time.Duration
	UserAgent      string

	ServerPort    string
	DashboardPort string

	// Authentication for the scheduler dashboard (required)
	WebAuthUser     string
	WebAuthPassword string

	// Scrape defaults
	SweepSchedule      string
	NewPostsEnabled    bool
	NewPostsSchedule   string
	NewPostsLimit      int
	DefaultTimeFilter  string
	MinRemainingQuota  int
	InterPostDelay     time.Duration
	WorkerConcurrency  int
	TaskStateRetention time.Duration
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MongoDBURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DatabaseName:       getEnv("DATABASE_NAME", "reddit_data"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		UserAgent:          getEnv("REDDIT_USER_AGENT", "reddit-harvester/1.0"),
		ServerPort:         getEnv("SERVER_PORT", "8090"),
		DashboardPort:      getEnv("DASHBOARD_PORT", "8080"),
		WebAuthUser:        getEnv("WEB_AUTH_USER", "admin"),
		WebAuthPassword:    getEnv("WEB_AUTH_PASSWORD", "password"),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@every 1h"),
		NewPostsEnabled:    getEnvBool("NEW_POSTS_MONITORING", true),
		NewPostsSchedule:   getEnv("NEW_POSTS_SCHEDULE", "@every 30m"),
		NewPostsLimit:      getEnvInt("NEW_POSTS_LIMIT", 25),
		DefaultTimeFilter:  getEnv("DEFAULT_TIME_FILTER", "day"),
		MinRemainingQuota:  getEnvInt("MIN_REMAINING_QUOTA", 50),
		InterPostDelay:     getEnvDuration("INTER_POST_DELAY", 500*time.Millisecond),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		TaskStateRetention: getEnvDuration("TASK_STATE_RETENTION", 24*time.Hour),
	}

	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.WebAuthUser == "" || cfg.WebAuthPassword == "" {
		return nil, fmt.Errorf("WEB_AUTH_USER and WEB_AUTH_PASSWORD are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
