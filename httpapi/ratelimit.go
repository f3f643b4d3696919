package httpapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"crashd/domain/apperr"

	"golang.org/x/time/rate"
)

// limiterRegistry hands out one token bucket per caller key and evicts idle
// entries so the map does not grow without bound.
type limiterRegistry struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newLimiterRegistry(limit rate.Limit, burst int) *limiterRegistry {
	return &limiterRegistry{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
	}
}

func (lr *limiterRegistry) allow(key string) bool {
	now := time.Now()

	lr.mu.Lock()
	defer lr.mu.Unlock()

	entry, ok := lr.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(lr.limit, lr.burst)}
		lr.entries[key] = entry
	}
	entry.lastSeen = now

	if len(lr.entries) > 1024 {
		for k, e := range lr.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(lr.entries, k)
			}
		}
	}
	return entry.limiter.Allow()
}

// rateLimited guards a handler with a per-IP token bucket
func rateLimited(registry *limiterRegistry, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !registry.allow(clientIP(r)) {
			writeError(w, r, apperr.New(apperr.ResourceExhausted, "too many requests"))
			return
		}
		next(w, r)
	}
}

// rateLimitedPerUser buckets by the authenticated user id, so one caller
// cannot consume the budget of everyone behind the same address. It must run
// inside requireAuth; the address is only a fallback.
func rateLimitedPerUser(registry *limiterRegistry, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if identity := identityFrom(r); identity != nil {
			key = fmt.Sprintf("user:%d", identity.UserID)
		}
		if !registry.allow(key) {
			writeError(w, r, apperr.New(apperr.ResourceExhausted, "too many requests"))
			return
		}
		next(w, r)
	}
}
