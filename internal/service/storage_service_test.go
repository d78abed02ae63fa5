package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "pdf-extract-service/pkg/errors"
)

// testConfig satisfies domain.Config with values the tests control.
type testConfig struct {
	supabaseURL   string
	supabaseKey   string
	storageBucket string
	internalKey   string
	maxFileSize   int64
	maxPageCount  int
	taskTimeout   time.Duration
	maxRetries    int
	retryDelay    time.Duration
	rateLimit     int
}

func (c *testConfig) GetServerPort() string { return "8080" }
func (c *testConfig) GetLogLevel() string { return "debug" }
func (c *testConfig) GetSupabaseURL() string { return c.supabaseURL }
func (c *testConfig) GetSupabaseKey() string { return c.supabaseKey }
func (c *testConfig) GetStorageBucket() string { return c.storageBucket }
func (c *testConfig) GetInternalAPIKey() string { return c.internalKey }
func (c *testConfig) GetWorkerCount() int { return 1 }
func (c *testConfig) GetQueueSize() int { return 10 }
func (c *testConfig) GetMaxFileSize() int64 { return c.maxFileSize }
func (c *testConfig) GetMaxPageCount() int { return c.maxPageCount }
func (c *testConfig) GetTaskTimeout() time.Duration { return c.taskTimeout }
func (c *testConfig) GetTaskMaxRetries() int { return c.maxRetries }
func (c *testConfig) GetTaskRetryDelay() time.Duration { return c.retryDelay }
func (c *testConfig) GetRateLimitPerMinute() int { return c.rateLimit }

func newTestStorage(baseURL string) *SupabaseStorage {
	cfg := &testConfig{
		supabaseURL:   baseURL,
		supabaseKey:   "service-key",
		storageBucket: "papers",
		maxFileSize:   1 << 20,
	}
	return NewStorageService(cfg, testLogger{})
}

func TestDownload_AbsoluteURL(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	// baseURL deliberately different from the download host
	s := newTestStorage("https://example.supabase.co")

	body, err := s.Download(context.Background(), srv.URL+"/papers/x.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "%PDF-1.4 body" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotAuth != "" {
		t.Fatalf("credentials must not leak to foreign hosts, got %q", gotAuth)
	}
}

func TestDownload_RelativeKeyUsesBucketAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	s := newTestStorage(srv.URL)

	if _, err := s.Download(context.Background(), "abc/doc.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/storage/v1/object/papers/abc/doc.pdf" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Fatalf("expected bearer auth for own host, got %q", gotAuth)
	}
}

func TestDownload_Non2xxIsStorageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestStorage(srv.URL)

	_, err := s.Download(context.Background(), srv.URL+"/missing.pdf")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Fatal("storage failures should be retryable")
	}
}

func TestDownload_OversizedBodyIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		big := make([]byte, 2048)
		w.Write(big)
	}))
	defer srv.Close()

	cfg := &testConfig{supabaseURL: srv.URL, storageBucket: "papers", maxFileSize: 1024}
	s := NewStorageService(cfg, testLogger{})

	_, err := s.Download(context.Background(), srv.URL+"/big.pdf")
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apperrors.IsRetryable(err) {
		t.Fatal("oversized downloads must not be retried")
	}
}

func TestUploadText(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotUpsert string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestStorage(srv.URL)

	url, err := s.UploadText(context.Background(), "abc/extracted_text.txt", "the text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/storage/v1/object/papers/abc/extracted_text.txt" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Fatal("expected x-upsert so re-extraction overwrites the object")
	}
	if string(gotBody) != "the text" {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if url != "papers/abc/extracted_text.txt" {
		t.Fatalf("unexpected object URL %q", url)
	}
}

func TestUploadText_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestStorage(srv.URL)

	_, err := s.UploadText(context.Background(), "abc/extracted_text.txt", "x")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
