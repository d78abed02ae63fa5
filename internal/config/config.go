package config

import (
	"os"
	"strconv"
	"time"

	"pdf-extract-service/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort     string
	LogLevel       string
	SupabaseURL    string
	SupabaseKey    string
	StorageBucket  string
	InternalAPIKey string

	WorkerCount int
	QueueSize   int

	MaxFileSize  int64
	MaxPageCount int

	TaskTimeout    time.Duration
	TaskMaxRetries int
	TaskRetryDelay time.Duration

	RateLimitPerMinute int
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:     getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL:    getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:    getEnvOrDefault("SUPABASE_SERVICE_KEY", ""),
		StorageBucket:  getEnvOrDefault("STORAGE_BUCKET", "papers"),
		InternalAPIKey: getEnvOrDefault("INTERNAL_API_KEY", ""),

		WorkerCount: getEnvIntOrDefault("WORKER_COUNT", 4),
		QueueSize:   getEnvIntOrDefault("QUEUE_SIZE", 100),

		MaxFileSize:  getEnvInt64OrDefault("MAX_FILE_SIZE", 100*1024*1024), // 100MB default
		MaxPageCount: getEnvIntOrDefault("MAX_PAGE_COUNT", 500),

		TaskTimeout:    getEnvDurationSeconds("TASK_TIMEOUT_SECONDS", 300*time.Second),
		TaskMaxRetries: getEnvIntOrDefault("TASK_MAX_RETRIES", 2),
		TaskRetryDelay: getEnvDurationSeconds("TASK_RETRY_DELAY_SECONDS", 30*time.Second),

		RateLimitPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase project URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase service key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetStorageBucket returns the bucket extracted text is uploaded to
func (c *AppConfig) GetStorageBucket() string {
	return c.StorageBucket
}

// GetInternalAPIKey returns the shared secret for internal API auth.
// Empty means auth is skipped (development only).
func (c *AppConfig) GetInternalAPIKey() string {
	return c.InternalAPIKey
}

// GetWorkerCount returns the number of extraction workers
func (c *AppConfig) GetWorkerCount() int {
	return c.WorkerCount
}

// GetQueueSize returns the task queue buffer size
func (c *AppConfig) GetQueueSize() int {
	return c.QueueSize
}

// GetMaxFileSize returns the maximum allowed PDF size in bytes
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetMaxPageCount returns the maximum allowed page count
func (c *AppConfig) GetMaxPageCount() int {
	return c.MaxPageCount
}

// GetTaskTimeout returns the per-attempt extraction time limit
func (c *AppConfig) GetTaskTimeout() time.Duration {
	return c.TaskTimeout
}

// GetTaskMaxRetries returns how many times a transient failure is retried
func (c *AppConfig) GetTaskMaxRetries() int {
	return c.TaskMaxRetries
}

// GetTaskRetryDelay returns the delay between retry attempts
func (c *AppConfig) GetTaskRetryDelay() time.Duration {
	return c.TaskRetryDelay
}

// GetRateLimitPerMinute returns the submit rate limit per client
func (c *AppConfig) GetRateLimitPerMinute() int {
	return c.RateLimitPerMinute
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
