package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Meta Graph API
	GraphAPIBase    string
	GraphTimeoutSec int

	// Rule engine
	SchedulerTickSec int
	ExecutorWorkers  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:           getEnv("DB_NAME", "go-adrules"),
		SkipAuth:         getEnv("SKIP_AUTH", "false") == "true",
		Environment:      getEnv("ENVIRONMENT", "development"),
		AppId:            getEnv("APP_ID", "go-adrules"),
		GraphAPIBase:     getEnv("GRAPH_API_BASE", "https://graph.facebook.com/v19.0"),
		GraphTimeoutSec:  getEnvInt("GRAPH_API_TIMEOUT_SEC", 30),
		SchedulerTickSec: getEnvInt("SCHEDULER_TICK_SEC", 30),
		ExecutorWorkers:  getEnvInt("EXECUTOR_WORKERS", 2),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
