package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splax/crate/internal/apperror"
)

const msgTooManyRequests = "Too Many Requests"

// RateLimiter counts hits per key in fixed windows. Implementations are shared
// by every route and must be safe for concurrent use.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// ratePolicy is the request budget of one route.
type ratePolicy struct {
	route  string
	limit  int
	window time.Duration
}

func perMinute(route string, limit int) ratePolicy {
	return ratePolicy{route: route, limit: limit, window: time.Minute}
}

// charge counts one hit of key against p and publishes the remaining budget
// on h. It reports whether the request may proceed.
func (r *Router) charge(h http.Header, p ratePolicy, key string) bool {
	if p.limit <= 0 || r.limiter == nil {
		return true
	}
	decision := r.limiter.Allow(p.route+"|"+key, p.limit, p.window)
	setRateHeaders(h, p.limit, decision)
	if decision.allowed {
		return true
	}
	r.metrics.rateLimited(p.route, rateMetricKey(key))
	return false
}

// limitIP guards public routes, where the caller has no identity yet.
func (r *Router) limitIP(p ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.charge(w.Header(), p, rateLimitKeyIP(req)) {
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next(w, req)
	}
}

// limitUser charges the authenticated caller, so it has to follow
// authenticate in a chain.
func (r *Router) limitUser(p ratePolicy) Step {
	return func(_ context.Context, st *State) Outcome {
		if !r.charge(st.header, p, "user:"+st.Email) {
			return Fail(apperror.TooManyRequests(msgTooManyRequests))
		}
		return Next()
	}
}

func setRateHeaders(h http.Header, limit int, decision rateDecision) {
	if h == nil {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(limit-decision.count, 0)))
	if !decision.windowEnd.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func rateLimitKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// rateMetricKey keeps the key kind only; emails and addresses would explode
// the label cardinality.
func rateMetricKey(key string) string {
	if kind, _, ok := strings.Cut(key, ":"); ok && kind != "" {
		return kind
	}
	return "unknown"
}
