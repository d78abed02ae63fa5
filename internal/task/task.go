// Package task provides the in-process replacement for an external job
// broker: a buffered queue consumed by a fixed pool of workers, with the
// extraction record table acting as the durable state.
package task

import (
	"context"

	"github.com/google/uuid"
)

// Status represents the in-memory state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TypeExtractPDF identifies the PDF extraction task type.
const TypeExtractPDF = "pdf_extract"

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() Status

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Enqueuer is the write side of the queue, what services see.
type Enqueuer interface {
	Enqueue(task Task) error
}

// Reader is the consume side of the queue, what workers see.
type Reader interface {
	GetChannel() <-chan Task
}
