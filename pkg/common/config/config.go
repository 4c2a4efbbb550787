package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaRequestTopic string
	KafkaEventTopic   string

	// Result cache. TTL tier is picked by how long the result took to
	// produce: cheap results expire fast, expensive ones stick around.
	CacheTTLShort  time.Duration
	CacheTTLMedium time.Duration
	CacheTTLLong   time.Duration

	// Pipeline
	PinnedMode             string
	RequestTimeout         time.Duration
	MaxConcurrentTrainings int
	TrainerMaxAttempts     int
	TuningProfilePath      string

	// Trainer
	TrainingArtifactDir   string
	RemoteTrainingBaseURL string
	RemoteTrainingTimeout time.Duration

	// OAuth client credentials for the remote training and deployment APIs
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	// Deployment
	LocalDeployDir     string
	CloudDeployBaseURL string
	EdgeDeployDir      string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 16*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "modelforge"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "modelforge123"),
		PostgresDB:       getEnv("POSTGRES_DB", "modelforge"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "modelforge-platform"),
		KafkaRequestTopic: getEnv("KAFKA_REQUEST_TOPIC", "finetune.requests"),
		KafkaEventTopic:   getEnv("KAFKA_EVENT_TOPIC", "finetune.lifecycle"),

		CacheTTLShort:  getDuration("CACHE_TTL_SHORT", time.Hour),
		CacheTTLMedium: getDuration("CACHE_TTL_MEDIUM", 24*time.Hour),
		CacheTTLLong:   getDuration("CACHE_TTL_LONG", 7*24*time.Hour),

		PinnedMode:             getEnv("TRAINING_MODE", "auto"),
		RequestTimeout:         getDuration("REQUEST_TIMEOUT", 10*time.Minute),
		MaxConcurrentTrainings: getIntEnv("MAX_CONCURRENT_TRAININGS", 2),
		TrainerMaxAttempts:     getIntEnv("TRAINER_MAX_ATTEMPTS", 3),
		TuningProfilePath:      getEnv("TUNING_PROFILE_PATH", ""),

		TrainingArtifactDir:   getEnv("TRAINING_ARTIFACT_DIR", "./data/models"),
		RemoteTrainingBaseURL: getEnv("REMOTE_TRAINING_BASE_URL", ""),
		RemoteTrainingTimeout: getDuration("REMOTE_TRAINING_TIMEOUT", 5*time.Minute),

		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),

		LocalDeployDir:     getEnv("LOCAL_DEPLOY_DIR", "./data/deployed"),
		CloudDeployBaseURL: getEnv("CLOUD_DEPLOY_BASE_URL", ""),
		EdgeDeployDir:      getEnv("EDGE_DEPLOY_DIR", "./data/edge"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
