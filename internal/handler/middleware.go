package handler

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"pdf-extract-service/internal/domain"

	"golang.org/x/time/rate"
)

const internalTokenHeader = "X-Internal-Token"

// InternalAuthMiddleware checks the shared internal API key. When no key is
// configured the check is skipped with a warning; that is a development-only
// posture.
func InternalAuthMiddleware(config domain.Config, logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := config.GetInternalAPIKey()
			if apiKey == "" {
				logger.Warn("INTERNAL_API_KEY not configured, skipping auth")
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(internalTokenHeader)
			if token == "" || token != apiKey {
				logger.Warn("internal auth failed",
					"path", r.URL.Path, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "missing or invalid internal credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter applies a per-client request budget. Clients are keyed by IP;
// stale entries are dropped lazily so the map does not grow unbounded.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	perMin   int
	logger   domain.Logger
	lastTidy time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleExpiry = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perMinute requests per client.
func NewRateLimiter(perMinute int, logger domain.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		perMin:   perMinute,
		logger:   logger,
		lastTidy: time.Now(),
	}
}

// Wrap enforces the limit on a single handler.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			rl.logger.Warn("rate limit exceeded", "client", clientIP(r), "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastTidy) > clientIdleExpiry {
		for key, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > clientIdleExpiry {
				delete(rl.clients, key)
			}
		}
		rl.lastTidy = now
	}

	cl, ok := rl.clients[client]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMin)), rl.perMin),
		}
		rl.clients[client] = cl
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// clientIP resolves the caller's address, preferring X-Forwarded-For since
// the service normally sits behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
