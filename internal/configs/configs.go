package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	QueueDriverMemory = "memory"
	QueueDriverRedis  = "redis"
	QueueDriverNats   = "nats"

	DBDriverSqlite   = "sqlite"
	DBDriverPostgres = "postgres"

	minWebhookSecretLength = 16
)

type Config struct {
	AppEnv   string
	AppAddr  string
	AppURL   string
	LogLevel string

	DBDriver    string
	DatabaseDSN string

	QueueDriver   string
	QueueSize     int
	RedisAddr     string
	RedisQueueKey string
	NatsURL       string
	NatsStream    string
	NatsSubject   string

	Workers                 int
	MaxAttempts             int
	AttemptTimeoutSeconds   int
	RetryBackoffSeconds     int
	RequeueIntervalSeconds  int
	RequeueStaleSeconds     int
	AIServiceURL            string
	AIServiceTimeoutSeconds int
	WebhookSecret           string
	RateLimit               int
	ShutdownTimeoutSeconds  int
	MockAIAddr              string
	MockAIDelayMilliseconds int
	MockAIStore             string
	MockAIResultTTLSeconds  int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")
	mockHost := getEnv("MOCK_AI_HOST", "127.0.0.1")
	mockPort := getEnv("MOCK_AI_PORT", "8000")

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "local"),
		AppAddr:  fmt.Sprintf("%s:%s", appHost, appPort),
		AppURL:   strings.TrimRight(getEnv("APP_URL", fmt.Sprintf("http://%s:%s", appHost, appPort)), "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:    getEnv("DB_DRIVER", DBDriverSqlite),
		DatabaseDSN: getEnv("DATABASE_DSN", "tasks.db"),

		QueueDriver:   getEnv("QUEUE_DRIVER", QueueDriverMemory),
		QueueSize:     getEnvAsInt("QUEUE_SIZE", 100),
		RedisAddr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		RedisQueueKey: getEnv("REDIS_QUEUE_KEY", "analysis_jobs"),
		NatsURL:       getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NatsStream:    getEnv("NATS_STREAM", "ANALYSIS_JOBS"),
		NatsSubject:   getEnv("NATS_SUBJECT", "analysis.jobs"),

		Workers:                 getEnvAsInt("TASK_WORKERS", 4),
		MaxAttempts:             getEnvAsInt("TASK_MAX_ATTEMPTS", 3),
		AttemptTimeoutSeconds:   getEnvAsInt("TASK_ATTEMPT_TIMEOUT_SECONDS", 120),
		RetryBackoffSeconds:     getEnvAsInt("TASK_RETRY_BACKOFF_SECONDS", 5),
		RequeueIntervalSeconds:  getEnvAsInt("TASK_REQUEUE_INTERVAL_SECONDS", 30),
		RequeueStaleSeconds:     getEnvAsInt("TASK_REQUEUE_STALE_SECONDS", 120),
		AIServiceURL:            strings.TrimRight(getEnv("AI_SERVICE_URL", "http://127.0.0.1:8000"), "/"),
		AIServiceTimeoutSeconds: getEnvAsInt("AI_SERVICE_TIMEOUT_SECONDS", 30),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		RateLimit:               getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeoutSeconds:  getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
		MockAIAddr:              fmt.Sprintf("%s:%s", mockHost, mockPort),
		MockAIDelayMilliseconds: getEnvAsInt("MOCK_AI_DELAY_MS", 1000),
		MockAIStore:             getEnv("MOCK_AI_STORE", "memory"),
		MockAIResultTTLSeconds:  getEnvAsInt("MOCK_AI_RESULT_TTL_SECONDS", 3600),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c Config) Validate() error {
	var errs []error

	if c.AppAddr == "" {
		errs = append(errs, errors.New("APP_HOST and APP_PORT must not be empty (e.g. 127.0.0.1:8080)"))
	}
	if !strings.HasPrefix(c.AppURL, "http://") && !strings.HasPrefix(c.AppURL, "https://") {
		errs = append(errs, errors.New("APP_URL must be an absolute http(s) URL"))
	}
	if !strings.HasPrefix(c.AIServiceURL, "http://") && !strings.HasPrefix(c.AIServiceURL, "https://") {
		errs = append(errs, errors.New("AI_SERVICE_URL must be an absolute http(s) URL"))
	}
	switch c.DBDriver {
	case DBDriverSqlite, DBDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported (sqlite, postgres)", c.DBDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must not be empty"))
	}
	switch c.QueueDriver {
	case QueueDriverMemory, QueueDriverRedis, QueueDriverNats:
	default:
		errs = append(errs, fmt.Errorf("QUEUE_DRIVER %q is not supported (memory, redis, nats)", c.QueueDriver))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must be greater than 0"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("TASK_WORKERS must be greater than 0"))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("TASK_MAX_ATTEMPTS must be greater than 0"))
	}
	if c.AttemptTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("TASK_ATTEMPT_TIMEOUT_SECONDS must be greater than 0"))
	}
	if c.RetryBackoffSeconds < 0 {
		errs = append(errs, errors.New("TASK_RETRY_BACKOFF_SECONDS must not be negative"))
	}
	if c.RequeueIntervalSeconds <= 0 {
		errs = append(errs, errors.New("TASK_REQUEUE_INTERVAL_SECONDS must be greater than 0"))
	}
	if c.RequeueStaleSeconds <= 0 {
		errs = append(errs, errors.New("TASK_REQUEUE_STALE_SECONDS must be greater than 0"))
	}
	if c.AIServiceTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("AI_SERVICE_TIMEOUT_SECONDS must be greater than 0"))
	}
	if len(c.WebhookSecret) < minWebhookSecretLength {
		errs = append(errs, fmt.Errorf("WEBHOOK_SECRET must be at least %d characters", minWebhookSecretLength))
	}
	if c.MockAIStore != "memory" && c.MockAIStore != "redis" {
		errs = append(errs, fmt.Errorf("MOCK_AI_STORE %q is not supported (memory, redis)", c.MockAIStore))
	}
	if c.MockAIDelayMilliseconds < 0 {
		errs = append(errs, errors.New("MOCK_AI_DELAY_MS must not be negative"))
	}
	if c.MockAIResultTTLSeconds <= 0 {
		errs = append(errs, errors.New("MOCK_AI_RESULT_TTL_SECONDS must be greater than 0"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be greater than 0"))
	}

	return errors.Join(errs...)
}

func (c Config) IsLocal() bool {
	return c.AppEnv == "local" || c.AppEnv == "development"
}

func (c Config) WebhookURL() string {
	return c.AppURL + "/api/analysis/result"
}

func (c Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}
