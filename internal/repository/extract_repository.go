package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"pdf-extract-service/internal/domain"
)

const extractsTable = "pdf_extracts"

// SupabaseExtractRepository implements domain.ExtractRepository on top of the
// pdf_extracts table, keyed by paper_id.
type SupabaseExtractRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseExtractRepository creates a new Supabase extraction-record repository
func NewSupabaseExtractRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.ExtractRepository {
	return &SupabaseExtractRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// Get returns the extraction record for a paper, or (nil, nil) when no record exists.
func (r *SupabaseExtractRepository) Get(paperID string) (*domain.ExtractRecord, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(extractsTable).
		Select("*", "", false).
		Eq("paper_id", paperID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction record: %w", err)
	}

	var records []domain.ExtractRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	return &records[0], nil
}

// Upsert merges a partial update into the record for a paper, creating it if needed.
func (r *SupabaseExtractRepository) Upsert(paperID string, patch domain.ExtractPatch) error {
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data := make(map[string]interface{}, len(patch)+2)
	for k, v := range patch {
		data[k] = v
	}
	data["paper_id"] = paperID
	data["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	_, _, err := client.From(extractsTable).
		Upsert(data, "paper_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert extraction record: %w", err)
	}

	return nil
}

// MarkFailed records a terminal failure for a paper.
func (r *SupabaseExtractRepository) MarkFailed(paperID string, message string) error {
	return r.Upsert(paperID, domain.ExtractPatch{
		"status":        string(domain.StatusFailed),
		"error_message": message,
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

// MarkCancelled records a cancellation for a paper.
func (r *SupabaseExtractRepository) MarkCancelled(paperID string) error {
	return r.Upsert(paperID, domain.ExtractPatch{
		"status":        string(domain.StatusCancelled),
		"error_message": nil,
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

// ListUnfinished returns records left in a non-terminal state.
func (r *SupabaseExtractRepository) ListUnfinished() ([]*domain.ExtractRecord, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(extractsTable).
		Select("*", "", false).
		In("status", []string{
			string(domain.StatusPending),
			string(domain.StatusQueued),
			string(domain.StatusDownloading),
			string(domain.StatusExtracting),
			string(domain.StatusUploading),
		}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished records: %w", err)
	}

	var records []domain.ExtractRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unfinished records: %w", err)
	}

	result := make([]*domain.ExtractRecord, 0, len(records))
	for i := range records {
		result = append(result, &records[i])
	}
	return result, nil
}
