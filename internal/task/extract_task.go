package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pdf-extract-service/internal/domain"
	apperrors "pdf-extract-service/pkg/errors"

	"github.com/google/uuid"
)

// Pipeline runs one extraction attempt for a paper. Implemented by the
// extract service; kept as an interface here so the task package stays free
// of service dependencies.
type Pipeline interface {
	Run(ctx context.Context, paperID, fileURL string, mode domain.ExtractMode, attempt int) error
}

// RetryPolicy controls how extraction attempts are bounded and retried.
type RetryPolicy struct {
	// MaxRetries is how many times a transient failure is retried after the
	// first attempt.
	MaxRetries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// ExtractParams identify one extraction job.
type ExtractParams struct {
	PaperID string             `json:"paper_id"`
	FileURL string             `json:"file_url"`
	Mode    domain.ExtractMode `json:"mode"`
}

// ExtractTask runs the extraction pipeline for one paper, handling per-attempt
// timeouts, transient-error retries and cancellation.
type ExtractTask struct {
	id       uuid.UUID
	params   ExtractParams
	pipeline Pipeline
	repo     domain.ExtractRepository
	registry *CancelRegistry
	policy   RetryPolicy
	logger   domain.Logger

	mu     sync.Mutex
	status Status
}

// NewExtractTask creates a task for one paper.
func NewExtractTask(
	params ExtractParams,
	pipeline Pipeline,
	repo domain.ExtractRepository,
	registry *CancelRegistry,
	policy RetryPolicy,
	logger domain.Logger,
) *ExtractTask {
	return &ExtractTask{
		id:       uuid.New(),
		params:   params,
		pipeline: pipeline,
		repo:     repo,
		registry: registry,
		policy:   policy,
		logger:   logger,
		status:   StatusPending,
	}
}

// ID returns the task's unique identifier
func (t *ExtractTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *ExtractTask) Type() string {
	return TypeExtractPDF
}

// Payload returns the task parameters as JSON
func (t *ExtractTask) Payload() []byte {
	data, err := json.Marshal(t.params)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Status returns the current task status
func (t *ExtractTask) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *ExtractTask) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Execute runs the extraction with retries. Validation failures fail the
// record immediately; transient failures retry up to MaxRetries with a delay;
// a timed-out attempt fails the record without retrying, matching the hard
// time limit the job had before.
func (t *ExtractTask) Execute(ctx context.Context) error {
	paperID := t.params.PaperID
	t.setStatus(StatusProcessing)

	// The record may have been cancelled while this task sat in the queue.
	if rec, err := t.repo.Get(paperID); err == nil && rec != nil && rec.Status == domain.StatusCancelled {
		t.logger.Info("skipping cancelled extraction", "paper_id", paperID)
		t.setStatus(StatusCompleted)
		return nil
	}

	maxAttempts := t.policy.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := t.runAttempt(ctx, attempt)
		if err == nil {
			t.setStatus(StatusCompleted)
			return nil
		}

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			// Either the job was cancelled (record already marked) or the
			// runner is shutting down (record recovered on next boot).
			// Neither is a task failure.
			t.logger.Info("extraction cancelled", "paper_id", paperID, "attempt", attempt)
			t.setStatus(StatusCompleted)
			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			t.setStatus(StatusFailed)
			msg := fmt.Sprintf("extraction timed out after %s", t.policy.Timeout)
			if markErr := t.repo.MarkFailed(paperID, msg); markErr != nil {
				t.logger.Error("failed to mark record failed", markErr, "paper_id", paperID)
			}
			return err
		}

		if !apperrors.IsRetryable(err) {
			t.logger.Error("permanent extraction failure", err,
				"paper_id", paperID, "attempt", attempt)
			t.setStatus(StatusFailed)
			if markErr := t.repo.MarkFailed(paperID, err.Error()); markErr != nil {
				t.logger.Error("failed to mark record failed", markErr, "paper_id", paperID)
			}
			return err
		}

		if attempt == maxAttempts {
			t.setStatus(StatusFailed)
			msg := fmt.Sprintf("extraction failed after %d retries: %v", t.policy.MaxRetries, err)
			if markErr := t.repo.MarkFailed(paperID, msg); markErr != nil {
				t.logger.Error("failed to mark record failed", markErr, "paper_id", paperID)
			}
			return err
		}

		t.logger.Warn("transient extraction failure, retrying",
			"paper_id", paperID, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if upErr := t.repo.Upsert(paperID, domain.ExtractPatch{
			"retry_count":   attempt,
			"error_message": fmt.Sprintf("retrying: %v", err),
		}); upErr != nil {
			t.logger.Error("failed to record retry", upErr, "paper_id", paperID)
		}

		select {
		case <-time.After(t.policy.RetryDelay):
		case <-ctx.Done():
			t.setStatus(StatusCompleted)
			return nil
		}
	}

	return nil
}

func (t *ExtractTask) runAttempt(ctx context.Context, attempt int) error {
	var attemptCtx context.Context
	var cancel context.CancelFunc
	if t.policy.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, t.policy.Timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	t.registry.Register(t.params.PaperID, cancel)
	defer t.registry.Unregister(t.params.PaperID)

	// A cancel landing between the dequeue-time check and Register would
	// miss both the record check and the registry; the record is the source
	// of truth for that window.
	if rec, err := t.repo.Get(t.params.PaperID); err == nil && rec != nil && rec.Status == domain.StatusCancelled {
		return context.Canceled
	}

	err := t.pipeline.Run(attemptCtx, t.params.PaperID, t.params.FileURL, t.params.Mode, attempt)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		// Distinguish the attempt timing out (or being cancelled) from the
		// runner shutting down.
		return attemptCtx.Err()
	}
	return err
}
