package domain

import (
	"context"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetStorageBucket() string
	GetInternalAPIKey() string

	GetWorkerCount() int
	GetQueueSize() int

	GetMaxFileSize() int64
	GetMaxPageCount() int

	GetTaskTimeout() time.Duration
	GetTaskMaxRetries() int
	GetTaskRetryDelay() time.Duration

	GetRateLimitPerMinute() int
}

// Storage defines the blob operations the extraction pipeline needs: fetching
// the source PDF and persisting the extracted text.
type Storage interface {
	Download(ctx context.Context, url string) ([]byte, error)
	UploadText(ctx context.Context, key string, text string) (string, error)
}
