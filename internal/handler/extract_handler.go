// Package handler provides HTTP handlers for the extraction API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-extract-service/internal/domain"
	apperrors "pdf-extract-service/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	PaperID string `json:"paper_id" validate:"required,uuid"`
	FileURL string `json:"file_url" validate:"required"`
	Mode    string `json:"mode"     validate:"omitempty,oneof=text markdown"`
}

// ExtractResponse is the response of POST /extract.
type ExtractResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id,omitempty"`
	PaperID string `json:"paper_id"`
	Message string `json:"message"`
}

// ExtractStatusResponse is the response of GET /extract/status/{paperId}.
type ExtractStatusResponse struct {
	PaperID         string  `json:"paper_id"`
	Status          string  `json:"status"`
	ProgressPercent int     `json:"progress_percent"`
	PageCount       int     `json:"page_count"`
	TextLength      int     `json:"text_length"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	TaskID          *string `json:"task_id,omitempty"`
	StartedAt       *string `json:"started_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
}

// CancelResponse is the response of POST /extract/cancel/{paperId}.
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExtractHandler handles extraction-related HTTP requests
type ExtractHandler struct {
	extractService domain.ExtractService
	validate       *validator.Validate
	logger         domain.Logger
}

// NewExtractHandler creates a new extraction handler
func NewExtractHandler(extractService domain.ExtractService, logger domain.Logger) *ExtractHandler {
	return &ExtractHandler{
		extractService: extractService,
		validate:       validator.New(),
		logger:         logger,
	}
}

// SubmitExtraction handles POST /extract.
func (h *ExtractHandler) SubmitExtraction(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = string(domain.ModeText)
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "PaperID":
				writeError(w, http.StatusBadRequest, "paper_id must be a valid UUID")
			case "FileURL":
				writeError(w, http.StatusBadRequest, "file_url is required")
			default:
				writeError(w, http.StatusBadRequest, "mode must be \"text\" or \"markdown\"")
			}
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	h.logger.Info("POST /extract", "paper_id", req.PaperID, "mode", req.Mode)

	outcome, err := h.extractService.Submit(r.Context(), req.PaperID, req.FileURL, domain.ExtractMode(req.Mode))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMode) {
			writeError(w, http.StatusBadRequest, "mode must be \"text\" or \"markdown\"")
			return
		}
		h.logger.Error("failed to submit extraction", err, "paper_id", req.PaperID)
		writeError(w, apperrors.GetStatusCode(err), "failed to submit extraction")
		return
	}

	writeJSON(w, http.StatusOK, ExtractResponse{
		Success: true,
		TaskID:  outcome.TaskID,
		PaperID: outcome.PaperID,
		Message: outcome.Message,
	})
}

// GetStatus handles GET /extract/status/{paperId}.
func (h *ExtractHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	paperID := mux.Vars(r)["paperId"]
	if paperID == "" {
		writeError(w, http.StatusBadRequest, "paper id is required")
		return
	}

	record, err := h.extractService.Status(r.Context(), paperID)
	if err != nil {
		h.logger.Error("failed to get extraction status", err, "paper_id", paperID)
		writeError(w, apperrors.GetStatusCode(err), "failed to get extraction status")
		return
	}

	if record == nil {
		writeJSON(w, http.StatusOK, ExtractStatusResponse{
			PaperID: paperID,
			Status:  "not_found",
		})
		return
	}

	writeJSON(w, http.StatusOK, ExtractStatusResponse{
		PaperID:         record.PaperID,
		Status:          string(record.Status),
		ProgressPercent: record.ProgressPercent,
		PageCount:       record.PageCount,
		TextLength:      record.TextLength,
		ErrorMessage:    record.ErrorMessage,
		TaskID:          record.TaskID,
		StartedAt:       record.StartedAt,
		CompletedAt:     record.CompletedAt,
	})
}

// CancelExtraction handles POST /extract/cancel/{paperId}.
func (h *ExtractHandler) CancelExtraction(w http.ResponseWriter, r *http.Request) {
	paperID := mux.Vars(r)["paperId"]
	if paperID == "" {
		writeError(w, http.StatusBadRequest, "paper id is required")
		return
	}

	outcome, err := h.extractService.Cancel(r.Context(), paperID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "extraction record not found")
			return
		}
		h.logger.Error("failed to cancel extraction", err, "paper_id", paperID)
		writeError(w, apperrors.GetStatusCode(err), "failed to cancel extraction")
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Success: outcome.Cancelled,
		Message: outcome.Message,
	})
}
