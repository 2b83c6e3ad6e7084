package api

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/roach88/bakehouse/internal/access"
)

// Request headers identifying the caller. An upstream gateway is expected
// to authenticate users and set them.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderUser   = "X-User-ID"
)

type actorKey struct{}

func actorFrom(ctx context.Context) access.Actor {
	a, _ := ctx.Value(actorKey{}).(access.Actor)
	return a
}

// ActorResolver turns request headers into a tenant-scoped actor.
type ActorResolver interface {
	Resolve(ctx context.Context, tenantID, userID string) (access.Actor, error)
}

func (h *handlers) tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := r.Header.Get(HeaderTenant), r.Header.Get(HeaderUser)
		if tenantID == "" || userID == "" {
			writeCode(w, codeUnauthenticated, HeaderTenant+" and "+HeaderUser+" headers are required")
			return
		}
		actor, err := h.resolver.Resolve(r.Context(), tenantID, userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// rateLimiter keeps one token bucket per tenant. It runs after the tenant
// middleware, so only resolved tenants ever get a bucket.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	onLimit  func()
}

func newRateLimiter(perSecond float64, burst int, onLimit func()) *rateLimiter {
	if onLimit == nil {
		onLimit = func() {}
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		onLimit:  onLimit,
	}
}

func (rl *rateLimiter) limiter(tenantID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[tenantID] = l
	}
	return l
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(actorFrom(r.Context()).TenantID).Allow() {
			rl.onLimit()
			w.Header().Set("Retry-After", "1")
			writeCode(w, codeRateLimited, "rate limit exceeded for tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}
