package handlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
)

// userLimiter hands out one token bucket per signed in user, or per client
// address for anonymous requests.
type userLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	window    time.Duration
	now       func() time.Time
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserLimiter(requestsPerWindow int, window time.Duration) *userLimiter {
	burst := requestsPerWindow / 2
	if burst < 1 {
		burst = 1
	}
	return &userLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(float64(requestsPerWindow) / window.Seconds()),
		burst:    burst,
		window:   window,
		now:      time.Now,
	}
}

func (l *userLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) >= l.window {
		l.prune(now)
	}
	if e, ok := l.limiters[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	e := &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst), lastSeen: now}
	l.limiters[key] = e
	return e.limiter
}

// prune drops limiters idle for a whole window. Their buckets have refilled,
// so a fresh limiter behaves the same. Caller holds l.mu.
func (l *userLimiter) prune(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
	l.lastPrune = now
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func limitKey(r *http.Request) string {
	if u := auth.GetUser(r); u != nil {
		return "user:" + u.ID
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// RateLimitMiddleware limits form mutations. Safe methods pass through.
func RateLimitMiddleware(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newUserLimiter(requestsPerWindow, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.get(limitKey(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				writeErrorCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
