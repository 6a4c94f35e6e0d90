package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"resumematch/internal/errors"

	"golang.org/x/time/rate"
)

const limiterIdleEviction = 10 * time.Minute

// RateLimiter keeps one token bucket per caller key (API key or client IP)
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	rejected int64
	done     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerMin per key with the
// given burst. A background goroutine evicts idle keys until Close.
func NewRateLimiter(requestsPerMin, burst int, logger *errors.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	m := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
		done:     make(chan struct{}),
		logger:   logger,
	}

	go m.cleanupRoutine(limiterIdleEviction)
	return m
}

func (m *RateLimiter) limiter(key string) *rate.Limiter {
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = l
	}
	m.lastSeen[key] = time.Now()
	return l
}

// Allow reports whether a request for key may proceed now
func (m *RateLimiter) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limiter(key).Allow() {
		return true
	}
	m.rejected++
	return false
}

// GetStats returns current rate limiter statistics
func (m *RateLimiter) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"enabled":           true,
		"active_limiters":   len(m.limiters),
		"rate_per_minute":   float64(m.rate) * 60.0,
		"burst_capacity":    m.burst,
		"rejected_requests": m.rejected,
	}
}

func (m *RateLimiter) cleanupRoutine(evictionAge time.Duration) {
	ticker := time.NewTicker(evictionAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(evictionAge)
		case <-m.done:
			return
		}
	}
}

// cleanup drops limiters idle for longer than evictionAge
func (m *RateLimiter) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, seen := range m.lastSeen {
		if now.Sub(seen) > evictionAge {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}

	if m.logger != nil {
		m.logger.Debug("Rate limiter cleanup completed", "remaining_limiters", len(m.limiters))
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *RateLimiter) Close() {
	m.once.Do(func() { close(m.done) })
}

// rateLimitMiddleware throttles callers before the request reaches the
// upstream gateway, answering with the same rate_limited envelope the gateway
// would produce.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			keys := getRateLimitKeys(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if s.RateLimiter.allowAll(keys) {
				next(w, r)
				return
			}

			requestID := requestIDFromContext(r.Context())
			s.Logger.Info("Rate limit exceeded",
				"request_id", requestID,
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			s.Observability.RecordRateLimitHit(r.Context(), r.URL.Path)

			w.Header().Set("Retry-After", "60")
			err := errors.NewRateLimitedError(errors.ErrCodeClientRateLimited, errors.MsgRateLimited, nil)
			writeErrorResponse(w, requestID, err, 0)
		}
	}
}

// getRateLimitKeys returns the buckets a request is charged against, IP first.
// The bridge does not verify caller API keys, so with byIP set the IP bucket
// always applies and a rotated key cannot buy a fresh allowance.
// Keys are never logged.
func getRateLimitKeys(r *http.Request, byAPIKey, byIP bool) []string {
	var keys []string
	if byIP {
		keys = append(keys, "ip:"+getClientIP(r))
	}
	if byAPIKey {
		apiKey := r.Header.Get("apikey")
		if apiKey == "" {
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				apiKey = strings.TrimSpace(after)
			}
		}
		if apiKey != "" {
			keys = append(keys, "api:"+apiKey)
		}
	}
	return keys
}

// allowAll charges keys in order and stops at the first rejection, so a
// request rejected by its IP bucket never creates an API-key bucket
func (m *RateLimiter) allowAll(keys []string) bool {
	for _, key := range keys {
		if !m.Allow(key) {
			return false
		}
	}
	return true
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
