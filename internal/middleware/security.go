package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 when r.Host does not match allowedHost (e.g. api.astroguide.app).
// allowedHost should be the bare hostname without scheme or port.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedHost == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqHost := r.Host
			if host, _, err := net.SplitHostPort(reqHost); err == nil {
				reqHost = host
			}
			if !strings.EqualFold(strings.TrimSpace(reqHost), strings.TrimSpace(allowedHost)) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// IPLimiter is a per-IP token bucket. Idle buckets are dropped by Run.
type IPLimiter struct {
	limit   rate.Limit
	burst   int
	message string
	match   func(*http.Request) bool

	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

// NewIPLimiter returns a limiter for requests accepted by match; a nil match
// limits every request.
func NewIPLimiter(limit rate.Limit, burst int, message string, match func(*http.Request) bool) *IPLimiter {
	return &IPLimiter{
		limit:   limit,
		burst:   burst,
		message: message,
		match:   match,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// GlobalRateLimit limits each IP to 2 req/s, burst 20.
func GlobalRateLimit() *IPLimiter {
	return NewIPLimiter(rate.Limit(2), 20, "Too many requests. Please slow down.", nil)
}

var readingPaths = map[string]bool{
	"/api/tarot/draw": true,
	"/api/palm":       true,
	"/api/face":       true,
	"/api/chat":       true,
}

// ReadingRateLimit applies a stricter limit to routes that call out to
// inference or chat (1 req/2s, burst 5). Use after GlobalRateLimit.
func ReadingRateLimit() *IPLimiter {
	return NewIPLimiter(rate.Every(2*time.Second), 5,
		"Too many readings requested. Please try again shortly.",
		func(r *http.Request) bool { return r.Method == http.MethodPost && readingPaths[r.URL.Path] })
}

func (l *IPLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = l.now()
	return e.limiter
}

// Allow reports whether ip may make another request now.
func (l *IPLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

func (l *IPLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > limiterTTL {
			delete(l.entries, ip)
		}
	}
}

func (l *IPLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run drops idle buckets until ctx is done.
func (l *IPLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.sweep()
		}
	}
}

// Handler returns 429 with the JSON envelope once the caller's bucket is empty.
func (l *IPLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.match != nil && !l.match(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(clientid.RealClientIP(r)) {
			writeLimited(w, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProductionSecurity returns middlewares for production: SecurityHeaders, HostCheck,
// then the per-IP limiters. The limiters must be started with Run.
func ProductionSecurity(allowedHost string, limiters ...*IPLimiter) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHost),
	}
	for _, l := range limiters {
		mws = append(mws, l.Handler)
	}
	return mws
}
