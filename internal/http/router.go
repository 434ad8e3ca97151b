package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/crate/internal/service/auth"
	"github.com/splax/crate/internal/service/item"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	items    item.Service
	limiter  RateLimiter
	health   func(context.Context) error
	registry *prometheus.Registry
	metrics  *httpMetrics
}

// Options configures optional router collaborators.
type Options struct {
	// Limiter defaults to an in-memory limiter.
	Limiter RateLimiter
	// Health reports backing store status on /healthz.
	Health func(context.Context) error
	// DocsDir is served under /docs/ when set.
	DocsDir string
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

const (
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, itemSvc item.Service, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		items:    itemSvc,
		limiter:  opts.Limiter,
		health:   opts.Health,
		registry: opts.Registry,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.registry == nil {
		r.registry = newRegistry()
	}
	r.metrics = newHTTPMetrics(r.registry)
	r.register(opts.DocsDir)
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register(docsDir string) {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	if docsDir != "" {
		docs := http.StripPrefix("/docs/", http.FileServer(http.Dir(docsDir)))
		r.mux.HandleFunc("/docs/", r.audit(docs.ServeHTTP))
	}

	r.mux.HandleFunc("/v1/user/signup", r.audit(byMethod(methodHandlers{
		http.MethodPost: r.limitIP(perMinute("signup", rateLimitSignup), r.signupChain()),
	})))
	r.mux.HandleFunc("/v1/user/login", r.audit(byMethod(methodHandlers{
		http.MethodPost: r.limitIP(perMinute("login", rateLimitLogin), r.loginChain()),
	})))
	r.mux.HandleFunc("/v1/user/me", r.audit(byMethod(methodHandlers{
		http.MethodGet: r.meChain(),
	})))
	r.mux.HandleFunc("/v1/user/items", r.audit(byMethod(methodHandlers{
		http.MethodGet: r.userItemsChain(),
	})))
	r.mux.HandleFunc("/v1/items", r.audit(byMethod(methodHandlers{
		http.MethodPost: r.createItemChain(),
	})))
	r.mux.HandleFunc("/v1/items/{id}", r.audit(byMethod(methodHandlers{
		http.MethodGet:    r.getItemChain(),
		http.MethodPut:    r.updateItemChain(),
		http.MethodDelete: r.deleteItemChain(),
	})))

	r.mux.HandleFunc("/", r.audit(handleNotFound))
}

type methodHandlers map[string]http.HandlerFunc

// byMethod dispatches on the request method and answers 405 otherwise.
func byMethod(handlers methodHandlers) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, req *http.Request) {
		next, ok := handlers[req.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		next(w, req)
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.health(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.observe(req.Method, routeLabel(req), status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "email", info.Email)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

// routeLabel keeps metric cardinality bounded by using the matched pattern.
func routeLabel(req *http.Request) string {
	if req.Pattern == "" || req.Pattern == "/" {
		return "unmatched"
	}
	return req.Pattern
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
