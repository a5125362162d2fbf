package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server         ServerConfig
	Backend        BackendConfig
	Recommendation RecommendationConfig
	Validation     ValidationConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Session        SessionConfig
	DownloadDir    string
	LogDir         string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the ShowPass backend. MediaOrigin serves the
// /uploads image paths and is usually the same host.
type BackendConfig struct {
	BaseURL     string
	MediaOrigin string
	Timeout     time.Duration
}

type RecommendationConfig struct {
	BaseURL string
}

// ValidationConfig is the independently-owned ticket validation boundary
// consumed only by the QR viewer.
type ValidationConfig struct {
	BaseURL string
}

type RedisConfig struct {
	Addr     string
	Enabled  bool
	EventTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PurchaseTopic string
	Enabled       bool
}

type SessionConfig struct {
	DBPath string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8090"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:     getEnv("BACKEND_URL", "http://localhost:8080/tfg"),
			MediaOrigin: getEnv("MEDIA_ORIGIN", "http://localhost:8080"),
			Timeout:     time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Recommendation: RecommendationConfig{
			BaseURL: getEnv("RECOMMENDATION_URL", "http://localhost:8000"),
		},
		Validation: ValidationConfig{
			BaseURL: getEnv("VALIDATION_URL", "http://localhost:8080/tfg"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			EventTTL: time.Duration(getEnvInt("EVENT_CACHE_TTL_SECONDS", 120)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			PurchaseTopic: getEnv("KAFKA_TOPIC_PURCHASES", "purchase-completed"),
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
		},
		Session: SessionConfig{
			DBPath: getEnv("SESSION_DB_PATH", "file::memory:?cache=shared"),
		},
		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		LogDir:      getEnv("LOG_DIR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
