package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	QueueBackend    string
	NATSURL         string
	JobStoreBackend string
	DatabaseURL     string

	DefaultProvider   string
	GoogleAccessToken string
	GoogleProjectID   string
	GoogleLocation    string
	VeoModel          string
	KlingAccessKey    string
	KlingSecretKey    string
	KlingBaseURL      string
	SoraAPIKey        string
	SoraModel         string

	StoragePath  string
	PersonasPath string

	WorkerIdleBackoff time.Duration
	OperationPoll     time.Duration
	OperationTimeout  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		NATSURL:         getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		JobStoreBackend: getEnv("JOBSTORE_BACKEND", "memory"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),

		DefaultProvider:   os.Getenv("DEFAULT_PROVIDER"),
		GoogleAccessToken: os.Getenv("GOOGLE_ACCESS_TOKEN"),
		GoogleProjectID:   os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleLocation:    getEnv("GOOGLE_LOCATION", "us-central1"),
		VeoModel:          getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		KlingAccessKey:    os.Getenv("KLING_ACCESS_KEY"),
		KlingSecretKey:    os.Getenv("KLING_SECRET_KEY"),
		KlingBaseURL:      os.Getenv("KLING_BASE_URL"),
		SoraAPIKey:        os.Getenv("SORA_API_KEY"),
		SoraModel:         getEnv("SORA_MODEL", "sora-1.0"),

		StoragePath:  getEnv("STORAGE_PATH", "./data/videos"),
		PersonasPath: getEnv("PERSONAS_PATH", "./data/personas"),

		WorkerIdleBackoff: time.Second * time.Duration(getEnvInt("WORKER_IDLE_BACKOFF_SECONDS", 2)),
		OperationPoll:     time.Second * time.Duration(getEnvInt("OPERATION_POLL_SECONDS", 10)),
		OperationTimeout:  time.Second * time.Duration(getEnvInt("OPERATION_TIMEOUT_SECONDS", 600)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	switch cfg.QueueBackend {
	case "memory", "nats":
	default:
		return nil, fmt.Errorf("QUEUE_BACKEND must be memory or nats, got %q", cfg.QueueBackend)
	}

	switch cfg.JobStoreBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when JOBSTORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("JOBSTORE_BACKEND must be memory or postgres, got %q", cfg.JobStoreBackend)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
