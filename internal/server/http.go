package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/service"
)

// HTTPServer exposes the user service as a JSON REST API under /api,
// plus two plain-text page stubs, a health check and Prometheus
// metrics.
type HTTPServer struct {
	svc      UserService
	logger   *zap.Logger
	r        *router.Router
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTPServer creates the REST adapter.  Each server owns its metrics
// registry so several can coexist in one process.
func NewHTTPServer(svc UserService, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{
		svc:      svc,
		logger:   logger,
		r:        router.New(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usersvc_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usersvc_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	s.registry.MustRegister(s.requests, s.latency)
	s.setupRoutes()
	return s
}

func (s *HTTPServer) setupRoutes() {
	s.r.GET("/health", s.handleHealth)
	s.r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Page stubs
	s.r.GET("/register", s.instrument("/register", s.handleRegisterPage))
	s.r.GET("/users", s.instrument("/users", s.handleUsersPage))

	// REST API
	s.r.POST("/api/users", s.instrument("/api/users", s.handleCreate))
	s.r.GET("/api/users", s.instrument("/api/users", s.handleList))
	s.r.GET("/api/users/{id}", s.instrument("/api/users/{id}", s.handleGet))
	s.r.PUT("/api/users/{id}", s.instrument("/api/users/{id}", s.handleUpdate))
	s.r.DELETE("/api/users/{id}", s.instrument("/api/users/{id}", s.handleDelete))
}

// Handler returns the HTTP handler
func (s *HTTPServer) Handler() fasthttp.RequestHandler {
	return s.r.Handler
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler: s.Handler(),
		Name:    "usersvc",
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()
	select {
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *HTTPServer) instrument(route string, h fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		h(ctx)
		took := time.Since(start)
		method := string(ctx.Method())
		code := ctx.Response.StatusCode()
		s.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		s.latency.WithLabelValues(method, route).Observe(took.Seconds())
		s.logger.Debug("http",
			zap.String("method", method),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", code),
			zap.Duration("took", took))
	}
}

// Helpers
func jsonResponse(ctx *fasthttp.RequestCtx, code int, data interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(code)
	if err := json.NewEncoder(ctx).Encode(data); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}

func messageResponse(ctx *fasthttp.RequestCtx, code int, message string) {
	jsonResponse(ctx, code, map[string]string{"message": message})
}

// errorResponse maps a service error to its status code.  Validation and
// duplicate-email errors are caller mistakes (400), unknown ids are 404,
// everything else is a 500.
func (s *HTTPServer) errorResponse(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrDuplicateEmail):
		messageResponse(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		messageResponse(ctx, fasthttp.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", zap.ByteString("path", ctx.Path()), zap.Error(err))
		messageResponse(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}

func pathID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		messageResponse(ctx, fasthttp.StatusBadRequest, "invalid id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) handleHealth(ctx *fasthttp.RequestCtx) {
	jsonResponse(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRegisterPage(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("User Registration Page - Use POST /api/users to create users")
}

func (s *HTTPServer) handleUsersPage(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("Users List Page - Use GET /api/users to get all users")
}

func (s *HTTPServer) handleCreate(ctx *fasthttp.RequestCtx) {
	var u model.User
	if err := json.Unmarshal(ctx.PostBody(), &u); err != nil {
		messageResponse(ctx, fasthttp.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	created, err := s.svc.Create(ctx, u)
	if err != nil {
		s.errorResponse(ctx, err)
		return
	}
	jsonResponse(ctx, fasthttp.StatusCreated, created)
}

// handleList returns every user, or the single owner of ?email=.
func (s *HTTPServer) handleList(ctx *fasthttp.RequestCtx) {
	if email := ctx.QueryArgs().Peek("email"); email != nil {
		u, err := s.svc.GetByEmail(ctx, string(email))
		if err != nil {
			s.errorResponse(ctx, err)
			return
		}
		if u == nil {
			messageResponse(ctx, fasthttp.StatusNotFound, service.ErrNotFound.Error())
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, u)
		return
	}

	users, err := s.svc.List(ctx)
	if err != nil {
		s.errorResponse(ctx, err)
		return
	}
	jsonResponse(ctx, fasthttp.StatusOK, users)
}

func (s *HTTPServer) handleGet(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	u, err := s.svc.GetByID(ctx, id)
	if err != nil {
		s.errorResponse(ctx, err)
		return
	}
	if u == nil {
		messageResponse(ctx, fasthttp.StatusNotFound, service.ErrNotFound.Error())
		return
	}
	jsonResponse(ctx, fasthttp.StatusOK, u)
}

func (s *HTTPServer) handleUpdate(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	var f model.Fields
	if err := json.Unmarshal(ctx.PostBody(), &f); err != nil {
		messageResponse(ctx, fasthttp.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	u, err := s.svc.Update(ctx, id, f)
	if err != nil {
		s.errorResponse(ctx, err)
		return
	}
	jsonResponse(ctx, fasthttp.StatusOK, u)
}

func (s *HTTPServer) handleDelete(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		s.errorResponse(ctx, err)
		return
	}
	messageResponse(ctx, fasthttp.StatusOK, "user deleted")
}
