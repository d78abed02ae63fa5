package domain

import (
	"context"
	"errors"
)

// ExtractStatus represents the lifecycle state of an extraction record.
type ExtractStatus string

const (
	StatusPending     ExtractStatus = "pending"
	StatusQueued      ExtractStatus = "queued"
	StatusDownloading ExtractStatus = "downloading"
	StatusExtracting  ExtractStatus = "extracting"
	StatusUploading   ExtractStatus = "uploading"
	StatusCompleted   ExtractStatus = "completed"
	StatusFailed      ExtractStatus = "failed"
	StatusCancelled   ExtractStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s ExtractStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether an extraction is queued or in flight.
func (s ExtractStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusQueued, StatusDownloading, StatusExtracting, StatusUploading:
		return true
	}
	return false
}

// ExtractMode selects the output format of an extraction.
type ExtractMode string

const (
	ModeText     ExtractMode = "text"
	ModeMarkdown ExtractMode = "markdown"
)

// IsValid reports whether the mode is one the service supports.
func (m ExtractMode) IsValid() bool {
	return m == ModeText || m == ModeMarkdown
}

// ExtractRecord is the persisted state of a paper's extraction.
type ExtractRecord struct {
	PaperID         string        `json:"paper_id"`
	FileURL         *string       `json:"file_url,omitempty"`
	Status          ExtractStatus `json:"status"`
	Mode            ExtractMode   `json:"extract_mode"`
	ProgressPercent int           `json:"progress_percent"`
	PageCount       int           `json:"page_count"`
	TextLength      int           `json:"text_length"`
	TextURL         *string       `json:"text_url,omitempty"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	TaskID          *string       `json:"task_id,omitempty"`
	RetryCount      int           `json:"retry_count"`
	StartedAt       *string       `json:"started_at,omitempty"`
	CompletedAt     *string       `json:"completed_at,omitempty"`
}

// ExtractPatch is a partial update applied to an extraction record.
type ExtractPatch map[string]interface{}

// ExtractRepository defines persistence operations for extraction records.
type ExtractRepository interface {
	// Get returns the record for a paper, or (nil, nil) when none exists.
	Get(paperID string) (*ExtractRecord, error)
	Upsert(paperID string, patch ExtractPatch) error
	MarkFailed(paperID string, message string) error
	MarkCancelled(paperID string) error

	// ListUnfinished returns records left in a non-terminal state, used to
	// re-queue work interrupted by a restart.
	ListUnfinished() ([]*ExtractRecord, error)
}

// SubmitOutcome is the result of submitting (or re-submitting) an extraction.
type SubmitOutcome struct {
	PaperID string
	TaskID  string
	Message string
}

// CancelOutcome is the result of a cancellation request.
type CancelOutcome struct {
	Cancelled bool
	Message   string
}

// ExtractService defines the use-case operations exposed over the API.
type ExtractService interface {
	Submit(ctx context.Context, paperID, fileURL string, mode ExtractMode) (*SubmitOutcome, error)
	Status(ctx context.Context, paperID string) (*ExtractRecord, error)
	Cancel(ctx context.Context, paperID string) (*CancelOutcome, error)
}

// Sentinel errors shared across layers.
var (
	ErrRecordNotFound = errors.New("extraction record not found")
	ErrInvalidMode    = errors.New("invalid extraction mode")
)
