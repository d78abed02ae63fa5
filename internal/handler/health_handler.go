package handler

import (
	"net/http"
)

const (
	serviceName    = "pdf-extract-service"
	serviceVersion = "1.0.0"
)

// EngineChecker reports whether the PDF engine can open documents.
type EngineChecker interface {
	EngineProbe() error
}

// PoolStatus reports worker pool health for the health endpoint.
type PoolStatus interface {
	Running() bool
	WorkerCount() int
}

// QueueStatus reports queue depth for the health endpoint.
type QueueStatus interface {
	Len() int
}

// HealthHandler reports service health plus dependency checks.
type HealthHandler struct {
	engine EngineChecker
	pool   PoolStatus
	queue  QueueStatus
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine EngineChecker, pool PoolStatus, queue QueueStatus) *HealthHandler {
	return &HealthHandler{
		engine: engine,
		pool:   pool,
		queue:  queue,
	}
}

type healthResponse struct {
	Status  string           `json:"status"`
	Service string           `json:"service"`
	Version string           `json:"version"`
	Engine  engineHealth     `json:"engine"`
	Workers workerPoolHealth `json:"workers"`
}

type engineHealth struct {
	Available bool   `json:"available"`
	Mode      string `json:"mode"`
	Error     string `json:"error,omitempty"`
}

type workerPoolHealth struct {
	Healthy    bool `json:"healthy"`
	Count      int  `json:"count"`
	QueueDepth int  `json:"queue_depth"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	engine := engineHealth{
		Available: true,
		Mode:      "in-process (go-fitz)",
	}
	if err := h.engine.EngineProbe(); err != nil {
		engine.Available = false
		engine.Error = err.Error()
	}

	workers := workerPoolHealth{
		Healthy:    h.pool.Running(),
		Count:      h.pool.WorkerCount(),
		QueueDepth: h.queue.Len(),
	}

	overall := "ok"
	if !engine.Available || !workers.Healthy {
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  overall,
		Service: serviceName,
		Version: serviceVersion,
		Engine:  engine,
		Workers: workers,
	})
}
