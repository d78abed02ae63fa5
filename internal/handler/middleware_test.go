package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestInternalAuth_SkippedWhenUnconfigured(t *testing.T) {
	mw := InternalAuthMiddleware(&testConfig{internalKey: ""}, testLogger{})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/extract/status/x", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected auth to be skipped without a key, got %d", rr.Code)
	}
}

func TestInternalAuth_RejectsMissingOrWrongToken(t *testing.T) {
	mw := InternalAuthMiddleware(&testConfig{internalKey: "secret"}, testLogger{})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/extract/status/x", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/extract/status/x", nil)
	req.Header.Set("X-Internal-Token", "wrong")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", rr.Code)
	}
}

func TestInternalAuth_AcceptsValidToken(t *testing.T) {
	mw := InternalAuthMiddleware(&testConfig{internalKey: "secret"}, testLogger{})
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/extract/status/x", nil)
	req.Header.Set("X-Internal-Token", "secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d", rr.Code)
	}
}

func TestRateLimiter_EnforcesBudget(t *testing.T) {
	rl := NewRateLimiter(3, testLogger{})
	handler := rl.Wrap(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/extract", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the budget is spent, got %d", rr.Code)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, testLogger{})
	handler := rl.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first client should pass, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("second client must have its own budget, got %d", rr.Code)
	}
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if ip := clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected first forwarded address, got %q", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := clientIP(req); ip != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", ip)
	}
}
