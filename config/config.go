package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RoutingAPIKey  string
	RoutingBaseURL string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	SnapshotDir    string
	SnapshotSource string
	AuditDir       string

	CommuteWorkers  int
	CommutePacingMs int
	ScoringWorkers  int
	KeywordWorkers  int
	UpsertBatchSize int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pipeline"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pipeline123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RoutingAPIKey:  getEnv("ROUTING_API_KEY", ""),
		RoutingBaseURL: getEnv("ROUTING_BASE_URL", "https://maps.googleapis.com"),

		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		LLMModel:   getEnv("LLM_MODEL", "qwen-plus"),

		SnapshotDir:    getEnv("SNAPSHOT_DIR", "./data"),
		SnapshotSource: getEnv("SNAPSHOT_SOURCE", "UNSW"),
		AuditDir:       getEnv("AUDIT_DIR", "./output"),

		CommuteWorkers:  getEnvInt("COMMUTE_WORKERS", 5),
		CommutePacingMs: getEnvInt("COMMUTE_PACING_MS", 1100),
		ScoringWorkers:  getEnvInt("SCORING_WORKERS", 2),
		KeywordWorkers:  getEnvInt("KEYWORD_WORKERS", 2),
		UpsertBatchSize: getEnvInt("UPSERT_BATCH_SIZE", 100),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
