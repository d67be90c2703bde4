// Package config loads engine configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported LLM providers for the embedded reference agent.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection (document/job repository)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Redis (event bus + default job queue)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MinIO blob storage
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	// Job queue backend: "redis" or "sqs"
	QueueBackend string
	QueueName    string
	SQSQueueURL  string
	AWSRegion    string

	// Source configuration directory (one YAML file per source id)
	SourceConfigDir string

	// Worker pool
	WorkerCount         int
	RetryBackoff        time.Duration
	AgentPendingTimeout time.Duration // 0 disables the sweeper
	SweepInterval       time.Duration

	// Embedded reference agent (development only)
	AgentID      string
	LLMProvider  string
	LLMModel     string
	OllamaHost   string
	OpenAIAPIKey string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "collection"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "model"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",

		QueueBackend: getEnv("QUEUE_BACKEND", "redis"),
		QueueName:    getEnv("QUEUE_NAME", "ingestion-jobs"),
		SQSQueueURL:  getEnv("SQS_QUEUE_URL", ""),
		AWSRegion:    getEnv("AWS_REGION", "eu-central-1"),

		SourceConfigDir: getEnv("SOURCE_CONFIG_DIR", "./sources"),

		WorkerCount:         getEnvInt("WORKER_COUNT", 4),
		RetryBackoff:        getEnvDuration("RETRY_BACKOFF", 30*time.Second),
		AgentPendingTimeout: getEnvDuration("AGENT_PENDING_TIMEOUT", 30*time.Minute),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", time.Minute),

		AgentID:      getEnv("AGENT_ID", ""),
		LLMProvider:  getEnv("LLM_PROVIDER", "ollama"),
		LLMModel:     getEnv("LLM_MODEL", "llama3.2"),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		LogFile:  getEnv("COLLECTION_LOG_FILE", "/tmp/collection-model.log"),
		LogLevel: parseLogLevel(getEnv("COLLECTION_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
