package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdf-extract-service/internal/domain"
	apperrors "pdf-extract-service/pkg/errors"
)

// SupabaseStorage implements domain.Storage. Downloads go to whatever URL the
// caller hands us (papers can live outside our own bucket); uploads always go
// to the configured Supabase storage bucket via its REST API.
type SupabaseStorage struct {
	baseURL     string
	apiKey      string
	bucket      string
	maxDownload int64
	httpClient  *http.Client
	logger      domain.Logger
}

// NewStorageService creates the storage client from configuration.
func NewStorageService(config domain.Config, logger domain.Logger) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:     strings.TrimRight(config.GetSupabaseURL(), "/"),
		apiKey:      config.GetSupabaseKey(),
		bucket:      config.GetStorageBucket(),
		maxDownload: config.GetMaxFileSize(),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

// Download fetches the source PDF. A relative key is resolved against the
// configured bucket; anything with a scheme is fetched as-is. The body read
// is capped one byte above the size limit so oversized files are caught
// without buffering them fully.
func (s *SupabaseStorage) Download(ctx context.Context, url string) ([]byte, error) {
	target := url
	if !strings.Contains(url, "://") {
		target = fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(url, "/"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("invalid download URL", err)
	}
	if strings.HasPrefix(target, s.baseURL) {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewStorageError("download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, apperrors.NewStorageError(
			fmt.Sprintf("download failed with status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxDownload+1))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read download body", err)
	}
	if int64(len(body)) > s.maxDownload {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"file exceeds the %.0fMB limit", float64(s.maxDownload)/(1024*1024)))
	}

	return body, nil
}

// UploadText stores extracted text under the given key in the bucket and
// returns the object URL. Re-extraction overwrites the previous object.
func (s *SupabaseStorage) UploadText(ctx context.Context, key string, text string) (string, error) {
	target := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(key, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(text))
	if err != nil {
		return "", apperrors.NewStorageError("invalid upload URL", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewStorageError("upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", apperrors.NewStorageError(
			fmt.Sprintf("upload failed with status %d", resp.StatusCode), nil)
	}

	s.logger.Debug("uploaded extracted text", "key", key, "bytes", len(text))
	return fmt.Sprintf("%s/%s", s.bucket, strings.TrimLeft(key, "/")), nil
}
