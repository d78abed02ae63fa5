package service

import (
	"context"
	"fmt"
	"time"

	"pdf-extract-service/internal/domain"
	"pdf-extract-service/internal/task"
	apperrors "pdf-extract-service/pkg/errors"
)

// ExtractService implements the extraction use cases: submitting jobs,
// reporting status, cancelling, and running the pipeline itself inside a
// worker (it is the task.Pipeline the extract tasks call back into).
type ExtractService struct {
	repo      domain.ExtractRepository
	storage   domain.Storage
	processor domain.PDFProcessor
	queue     task.Enqueuer
	registry  *task.CancelRegistry
	config    domain.Config
	logger    domain.Logger
}

var (
	_ domain.ExtractService = (*ExtractService)(nil)
	_ task.Pipeline         = (*ExtractService)(nil)
)

// NewExtractService creates a new extraction service instance
func NewExtractService(
	repo domain.ExtractRepository,
	storage domain.Storage,
	processor domain.PDFProcessor,
	queue task.Enqueuer,
	registry *task.CancelRegistry,
	config domain.Config,
	logger domain.Logger,
) *ExtractService {
	return &ExtractService{
		repo:      repo,
		storage:   storage,
		processor: processor,
		queue:     queue,
		registry:  registry,
		config:    config,
		logger:    logger,
	}
}

// Submit enqueues an extraction for a paper, or reports existing progress
// when one with the same mode is already completed or in flight.
func (s *ExtractService) Submit(ctx context.Context, paperID, fileURL string, mode domain.ExtractMode) (*domain.SubmitOutcome, error) {
	if !mode.IsValid() {
		return nil, domain.ErrInvalidMode
	}

	existing, err := s.repo.Get(paperID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up extraction record", err)
	}

	if existing != nil && existing.Mode == mode {
		if existing.Status == domain.StatusCompleted {
			return &domain.SubmitOutcome{
				PaperID: paperID,
				Message: "extraction already completed",
			}, nil
		}
		if existing.Status.IsActive() {
			taskID := ""
			if existing.TaskID != nil {
				taskID = *existing.TaskID
			}
			return &domain.SubmitOutcome{
				PaperID: paperID,
				TaskID:  taskID,
				Message: fmt.Sprintf("extraction in progress (status: %s)", existing.Status),
			}, nil
		}
	}

	if err := s.repo.Upsert(paperID, domain.ExtractPatch{
		"status":           string(domain.StatusQueued),
		"extract_mode":     string(mode),
		"file_url":         fileURL,
		"progress_percent": 0,
		"error_message":    nil,
	}); err != nil {
		return nil, apperrors.NewInternalError("failed to create extraction record", err)
	}

	t := s.newTask(paperID, fileURL, mode)
	if err := s.queue.Enqueue(t); err != nil {
		// Roll the record back: leaving it queued with no task behind it
		// would make every resubmit see a phantom in-flight job.
		if markErr := s.repo.MarkFailed(paperID, fmt.Sprintf("could not queue extraction: %v", err)); markErr != nil {
			s.logger.Error("failed to roll back queued record", markErr, "paper_id", paperID)
		}
		return nil, apperrors.NewInternalError("failed to enqueue extraction", err)
	}

	taskID := t.ID().String()
	if err := s.repo.Upsert(paperID, domain.ExtractPatch{"task_id": taskID}); err != nil {
		s.logger.Warn("failed to store task id", "paper_id", paperID, "error", err)
	}

	s.logger.Info("extraction task dispatched",
		"paper_id", paperID, "task_id", taskID, "mode", mode)

	return &domain.SubmitOutcome{
		PaperID: paperID,
		TaskID:  taskID,
		Message: "extraction task submitted",
	}, nil
}

// Status returns the extraction record for a paper, nil when none exists.
func (s *ExtractService) Status(ctx context.Context, paperID string) (*domain.ExtractRecord, error) {
	record, err := s.repo.Get(paperID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up extraction record", err)
	}
	return record, nil
}

// Cancel stops a queued or running extraction.
func (s *ExtractService) Cancel(ctx context.Context, paperID string) (*domain.CancelOutcome, error) {
	record, err := s.repo.Get(paperID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up extraction record", err)
	}
	if record == nil {
		return nil, domain.ErrRecordNotFound
	}

	if record.Status.IsTerminal() {
		return &domain.CancelOutcome{
			Cancelled: false,
			Message:   fmt.Sprintf("cannot cancel: status is %s", record.Status),
		}, nil
	}

	// Mark first so a task still waiting in the queue sees the cancellation
	// when it is dequeued; then terminate in-flight work.
	if err := s.repo.MarkCancelled(paperID); err != nil {
		return nil, apperrors.NewInternalError("failed to mark record cancelled", err)
	}

	if s.registry.Cancel(paperID) {
		s.logger.Info("running extraction terminated", "paper_id", paperID)
	}

	return &domain.CancelOutcome{
		Cancelled: true,
		Message:   "extraction cancelled",
	}, nil
}

// RecoverUnfinished re-queues extractions left in a non-terminal state by a
// previous run. Called once at startup, after the runner is up.
func (s *ExtractService) RecoverUnfinished() error {
	records, err := s.repo.ListUnfinished()
	if err != nil {
		return fmt.Errorf("failed to list unfinished extractions: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	s.logger.Info("recovering unfinished extractions", "count", len(records))

	for _, record := range records {
		if err := s.repo.Upsert(record.PaperID, domain.ExtractPatch{
			"status":           string(domain.StatusQueued),
			"progress_percent": 0,
			"error_message":    "requeued after restart",
		}); err != nil {
			s.logger.Error("failed to reset unfinished record", err, "paper_id", record.PaperID)
			continue
		}

		// A record without a stored source URL cannot be replayed; fail it
		// explicitly instead of leaving it dangling.
		if record.FileURL == nil || *record.FileURL == "" {
			if err := s.repo.MarkFailed(record.PaperID, "interrupted by restart"); err != nil {
				s.logger.Error("failed to mark unrecoverable record", err, "paper_id", record.PaperID)
			}
			continue
		}

		t := s.newTask(record.PaperID, *record.FileURL, record.Mode)
		if err := s.queue.Enqueue(t); err != nil {
			s.logger.Error("failed to requeue extraction", err, "paper_id", record.PaperID)
			if markErr := s.repo.MarkFailed(record.PaperID, fmt.Sprintf("could not queue extraction: %v", err)); markErr != nil {
				s.logger.Error("failed to roll back queued record", markErr, "paper_id", record.PaperID)
			}
			continue
		}
		if err := s.repo.Upsert(record.PaperID, domain.ExtractPatch{"task_id": t.ID().String()}); err != nil {
			s.logger.Warn("failed to store task id", "paper_id", record.PaperID, "error", err)
		}
	}

	return nil
}

// Run executes one extraction attempt. Called by ExtractTask inside a worker.
func (s *ExtractService) Run(ctx context.Context, paperID, fileURL string, mode domain.ExtractMode, attempt int) error {
	s.logger.Info("starting extraction",
		"paper_id", paperID, "mode", mode, "attempt", attempt)

	if err := s.repo.Upsert(paperID, domain.ExtractPatch{
		"status":        string(domain.StatusDownloading),
		"extract_mode":  string(mode),
		"retry_count":   attempt - 1,
		"started_at":    time.Now().UTC().Format(time.RFC3339),
		"error_message": nil,
	}); err != nil {
		return apperrors.NewInternalError("failed to update record", err)
	}

	pdfBytes, err := s.storage.Download(ctx, fileURL)
	if err != nil {
		return err
	}
	s.logger.Info("downloaded PDF", "paper_id", paperID, "bytes", len(pdfBytes))

	pageCount, err := s.processor.Validate(pdfBytes, s.config.GetMaxFileSize(), s.config.GetMaxPageCount())
	if err != nil {
		return err
	}
	s.logger.Info("validation ok",
		"paper_id", paperID, "pages", pageCount,
		"size_mb", fmt.Sprintf("%.1f", float64(len(pdfBytes))/(1024*1024)))

	if err := s.repo.Upsert(paperID, domain.ExtractPatch{
		"status":           string(domain.StatusExtracting),
		"progress_percent": 50,
		"page_count":       pageCount,
	}); err != nil {
		return apperrors.NewInternalError("failed to update record", err)
	}

	pages, _, err := s.processor.ExtractPages(ctx, pdfBytes)
	if err != nil {
		return err
	}

	text := s.processor.Render(pages, mode)
	textLength := len(text)
	s.logger.Info("extraction finished",
		"paper_id", paperID, "pages", len(pages), "chars", textLength)

	if err := s.repo.Upsert(paperID, domain.ExtractPatch{
		"status":           string(domain.StatusUploading),
		"progress_percent": 80,
	}); err != nil {
		return apperrors.NewInternalError("failed to update record", err)
	}

	key := fmt.Sprintf("%s/extracted_text.txt", paperID)
	if mode == domain.ModeMarkdown {
		key = fmt.Sprintf("%s/extracted_text.md", paperID)
	}
	textURL, err := s.storage.UploadText(ctx, key, text)
	if err != nil {
		return err
	}

	// A cancellation landing this late still wins: never let completed
	// overwrite a cancelled record.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.repo.Upsert(paperID, domain.ExtractPatch{
		"status":           string(domain.StatusCompleted),
		"progress_percent": 100,
		"page_count":       pageCount,
		"text_length":      textLength,
		"text_url":         textURL,
		"completed_at":     time.Now().UTC().Format(time.RFC3339),
		"error_message":    nil,
	}); err != nil {
		return apperrors.NewInternalError("failed to update record", err)
	}

	s.logger.Info("extraction completed",
		"paper_id", paperID, "pages", pageCount, "chars", textLength)
	return nil
}

func (s *ExtractService) newTask(paperID, fileURL string, mode domain.ExtractMode) *task.ExtractTask {
	return task.NewExtractTask(
		task.ExtractParams{PaperID: paperID, FileURL: fileURL, Mode: mode},
		s,
		s.repo,
		s.registry,
		task.RetryPolicy{
			MaxRetries: s.config.GetTaskMaxRetries(),
			RetryDelay: s.config.GetTaskRetryDelay(),
			Timeout:    s.config.GetTaskTimeout(),
		},
		s.logger,
	)
}
