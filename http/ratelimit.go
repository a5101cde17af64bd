package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiterTTL is how long an idle client's bucket is kept.
const clientLimiterTTL = 10 * time.Minute

// ClientLimiter provides per-client rate limiting using token buckets.
// Each client gets its own limiter with a burst of 1.
type ClientLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientBucket
	rps       float64
	lastPrune time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a new ClientLimiter allowing rps requests per
// second per client.
func NewClientLimiter(rps float64) *ClientLimiter {
	return &ClientLimiter{
		limiters:  make(map[string]*clientBucket),
		rps:       rps,
		lastPrune: time.Now(),
	}
}

// Allow reports whether a request from client may proceed now.
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.lastPrune) > clientLimiterTTL {
		for key, b := range l.limiters {
			if now.Sub(b.lastSeen) > clientLimiterTTL {
				delete(l.limiters, key)
			}
		}
		l.lastPrune = now
	}
	b, ok := l.limiters[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(l.rps), 1)}
		l.limiters[client] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Middleware rejects requests over the limit with 429. Only state-changing
// methods are limited.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
