package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pdf-extract-service/internal/domain"
	apperrors "pdf-extract-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRepo tracks repository calls made by a task under test. When
// recordSeq is set, successive Get calls consume it in order.
type recordingRepo struct {
	mu         sync.Mutex
	record     *domain.ExtractRecord
	recordSeq  []*domain.ExtractRecord
	patches    []domain.ExtractPatch
	failedMsg  string
	failCalled bool
}

func (r *recordingRepo) Get(paperID string) (*domain.ExtractRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recordSeq) > 0 {
		rec := r.recordSeq[0]
		r.recordSeq = r.recordSeq[1:]
		return rec, nil
	}
	return r.record, nil
}

func (r *recordingRepo) Upsert(paperID string, patch domain.ExtractPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches = append(r.patches, patch)
	return nil
}

func (r *recordingRepo) MarkFailed(paperID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCalled = true
	r.failedMsg = message
	return nil
}

func (r *recordingRepo) MarkCancelled(paperID string) error { return nil }

func (r *recordingRepo) ListUnfinished() ([]*domain.ExtractRecord, error) { return nil, nil }

// stubPipeline returns scripted errors per attempt.
type stubPipeline struct {
	mu       sync.Mutex
	errs     []error
	attempts int
	block    bool
}

func (p *stubPipeline) Run(ctx context.Context, paperID, fileURL string, mode domain.ExtractMode, attempt int) error {
	p.mu.Lock()
	p.attempts++
	n := p.attempts
	block := p.block
	var err error
	if n <= len(p.errs) {
		err = p.errs[n-1]
	}
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *stubPipeline) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func newTaskUnderTest(pipeline *stubPipeline, repo *recordingRepo, policy RetryPolicy) (*ExtractTask, *CancelRegistry) {
	registry := NewCancelRegistry()
	task := NewExtractTask(
		ExtractParams{PaperID: "paper-1", FileURL: "u/p.pdf", Mode: domain.ModeText},
		pipeline, repo, registry, policy, noopLogger{},
	)
	return task, registry
}

func TestExtractTaskRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{errs: []error{
		apperrors.NewNetworkError("connection reset", errors.New("reset")),
	}}
	repo := &recordingRepo{}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 2, pipeline.attemptCount(), "failed attempt should be retried once")
	assert.False(t, repo.failCalled)
	assert.Equal(t, StatusCompleted, task.Status())
}

func TestExtractTaskDoesNotRetryValidationFailure(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{errs: []error{
		apperrors.NewValidationError("not a valid PDF file"),
	}}
	repo := &recordingRepo{}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	err := task.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, pipeline.attemptCount(), "permanent failures must not be retried")
	assert.True(t, repo.failCalled)
	assert.Contains(t, repo.failedMsg, "not a valid PDF file")
	assert.Equal(t, StatusFailed, task.Status())
}

func TestExtractTaskExhaustsRetries(t *testing.T) {
	t.Parallel()

	transient := apperrors.NewStorageError("bucket unavailable", errors.New("503"))
	pipeline := &stubPipeline{errs: []error{transient, transient, transient}}
	repo := &recordingRepo{}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	err := task.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, pipeline.attemptCount())
	assert.True(t, repo.failCalled)
	assert.Contains(t, repo.failedMsg, "extraction failed after 2 retries")
}

func TestExtractTaskSkipsCancelledRecord(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{}
	repo := &recordingRepo{record: &domain.ExtractRecord{
		PaperID: "paper-1",
		Status:  domain.StatusCancelled,
	}}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{MaxRetries: 2})

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 0, pipeline.attemptCount(), "cancelled work must not run")
	assert.Equal(t, StatusCompleted, task.Status())
}

func TestExtractTaskCancelLandingAfterDequeueCheck(t *testing.T) {
	t.Parallel()

	// First Get answers the dequeue-time check, second answers the
	// pre-attempt check after the cancel function is registered.
	pipeline := &stubPipeline{}
	repo := &recordingRepo{recordSeq: []*domain.ExtractRecord{
		{PaperID: "paper-1", Status: domain.StatusQueued},
		{PaperID: "paper-1", Status: domain.StatusCancelled},
	}}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{MaxRetries: 2})

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 0, pipeline.attemptCount(), "work cancelled mid-handoff must not run")
	assert.False(t, repo.failCalled, "cancellation is not a failure")
	assert.Equal(t, StatusCompleted, task.Status())
}

func TestExtractTaskTimeoutFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{block: true}
	repo := &recordingRepo{}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    20 * time.Millisecond,
	})

	err := task.Execute(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, pipeline.attemptCount(), "timed-out work must not be retried")
	assert.True(t, repo.failCalled)
	assert.Contains(t, repo.failedMsg, "timed out")
}

func TestExtractTaskCancelledViaRegistry(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{block: true}
	repo := &recordingRepo{}
	task, registry := newTaskUnderTest(pipeline, repo, RetryPolicy{MaxRetries: 2})

	go func() {
		// Wait until the attempt registered itself, then cancel it.
		for i := 0; i < 100; i++ {
			if registry.Cancel("paper-1") {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 1, pipeline.attemptCount())
	assert.False(t, repo.failCalled, "cancellation is not a failure")
	assert.Equal(t, StatusCompleted, task.Status())
}

func TestExtractTaskStopsOnRunnerShutdown(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{block: true}
	repo := &recordingRepo{}
	task, _ := newTaskUnderTest(pipeline, repo, RetryPolicy{MaxRetries: 2})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, task.Execute(ctx))
	assert.False(t, repo.failCalled, "shutdown must leave the record for restart recovery")
}
