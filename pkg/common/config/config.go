package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Health server
	HealthHost string
	HealthPort string
	HealthFile string

	// Scheduler
	IngestInterval      time.Duration
	AudioWorkerInterval time.Duration
	DispatchInterval    time.Duration
	ReferenceInterval   time.Duration
	ShutdownTimeout     time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	DBPoolMinConns   int
	DBPoolMaxConns   int

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	TranscriptionTopic string

	// Feed API
	FeedAPIBaseURL  string
	FeedAPIKey      string
	FeedAPIKeyID    string
	FeedAppID       string
	FeedTokenTTL    time.Duration
	FeedHTTPTimeout time.Duration

	// Audio worker
	AudioWorkerBatchSize  int
	AudioWorkerMaxRetries int
	AudioRetryInterval    time.Duration
	AudioStuckTimeout     time.Duration
	AudioSampleRate       int
	AudioTargetLoudness   float64
	AudioTierConfigPath   string
	TempAudioDir          string
	ConvertTimeoutFloor   time.Duration

	// Object storage
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	AudioBucketPath string
	MinioUseSSL     bool

	// Transcription dispatch
	TranscriptionBatchSize      int
	TranscriptionMaxAgeHours    int
	TranscriptionRateLimitDelay time.Duration
}

func Load() *Config {
	return &Config{
		HealthHost: getEnv("HEALTH_HOST", "0.0.0.0"),
		HealthPort: getEnv("HEALTH_PORT", "8088"),
		HealthFile: getEnv("HEALTH_FILE", "/tmp/scheduler_healthy"),

		IngestInterval:      getDuration("INGEST_INTERVAL", 10*time.Second),
		AudioWorkerInterval: getDuration("AUDIO_WORKER_INTERVAL", 5*time.Second),
		DispatchInterval:    getDuration("TRANSCRIPTION_DISPATCH_INTERVAL", 30*time.Second),
		ReferenceInterval:   getDuration("REFERENCE_REFRESH_INTERVAL", 24*time.Hour),
		ShutdownTimeout:     getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scanner"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "scanner"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DBPoolMinConns:   getIntEnv("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns:   getIntEnv("DB_POOL_MAX_CONNS", 10),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		TranscriptionTopic: getEnv("TRANSCRIPTION_TOPIC", "transcription-tasks"),

		FeedAPIBaseURL:  strings.TrimRight(getEnv("FEED_API_BASE_URL", "https://api.bcfy.io"), "/"),
		FeedAPIKey:      getEnv("FEED_API_KEY", ""),
		FeedAPIKeyID:    getEnv("FEED_API_KEY_ID", ""),
		FeedAppID:       getEnv("FEED_APP_ID", ""),
		FeedTokenTTL:    getDuration("FEED_TOKEN_TTL", time.Hour),
		FeedHTTPTimeout: getDuration("FEED_HTTP_TIMEOUT", 30*time.Second),

		AudioWorkerBatchSize:  getIntEnv("AUDIO_WORKER_BATCH_SIZE", 20),
		AudioWorkerMaxRetries: getIntEnv("AUDIO_WORKER_MAX_RETRIES", 2),
		AudioRetryInterval:    getDuration("AUDIO_RETRY_INTERVAL", time.Second),
		AudioStuckTimeout:     getDuration("AUDIO_STUCK_TIMEOUT", 10*time.Minute),
		AudioSampleRate:       getIntEnv("AUDIO_SAMPLE_RATE", 16000),
		AudioTargetLoudness:   getFloatEnv("AUDIO_TARGET_LOUDNESS", -20),
		AudioTierConfigPath:   getEnv("AUDIO_TIER_CONFIG", ""),
		TempAudioDir:          getEnv("TEMP_AUDIO_DIR", ""),
		ConvertTimeoutFloor:   getDuration("CONVERT_TIMEOUT_FLOOR", 60*time.Second),

		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnv("MINIO_ROOT_USER", "admin"),
		MinioSecretKey:  getEnv("MINIO_ROOT_PASSWORD", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "feeds"),
		AudioBucketPath: getEnv("AUDIO_BUCKET_PATH", "calls"),
		MinioUseSSL:     getBoolEnv("MINIO_USE_SSL", false),

		TranscriptionBatchSize:      getIntEnv("TRANSCRIPTION_BATCH_SIZE", 10),
		TranscriptionMaxAgeHours:    getIntEnv("TRANSCRIPTION_MAX_AGE_HOURS", 72),
		TranscriptionRateLimitDelay: getDuration("TRANSCRIPTION_RATE_LIMIT_DELAY", 500*time.Millisecond),
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
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
