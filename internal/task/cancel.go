package task

import (
	"context"
	"sync"
)

// CancelRegistry tracks the cancel function of each running extraction so a
// cancellation request can terminate in-flight work. Queued work is handled
// separately: workers re-check the record status before starting.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register associates a running extraction with its cancel function.
func (r *CancelRegistry) Register(paperID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[paperID] = cancel
}

// Unregister removes the entry once the extraction attempt finishes.
func (r *CancelRegistry) Unregister(paperID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, paperID)
}

// Cancel cancels a running extraction. Returns false when nothing with that
// paper id is currently running.
func (r *CancelRegistry) Cancel(paperID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[paperID]
	delete(r.cancels, paperID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Running returns the number of currently registered extractions.
func (r *CancelRegistry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
