// Package web serves the interface streams of a module over HTTP.
//
// Routes:
//
//	GET  /interfaces/:name  latest value of an interface, as JSON
//	POST /dispatch          {"id", "input", "payload"} dispatched through the module
//	GET  /ws                websocket: pushes every new interface value and accepts dispatches
//	GET  /metrics           prometheus metrics of the server
//
// One Server may serve several interfaces; bind each with Factory.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/stream"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address of ListenAndServe. Defaults to ":8080".
	Addr string
	// WSRate and WSBurst bound the dispatches one websocket client may send.
	// Defaults to 20 per second with a burst of 10.
	WSRate  rate.Limit
	WSBurst int
	// Registry receives the server metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
	// TracerProvider, when set, traces every HTTP request.
	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

// DispatchRequest is the body of POST /dispatch and of websocket dispatches.
type DispatchRequest struct {
	ID      string `json:"id" validate:"required"`
	Input   string `json:"input" validate:"required"`
	Payload any    `json:"payload,omitempty"`
}

func (r DispatchRequest) data() fractalx.DispatchData {
	return fractalx.DispatchData{ID: r.ID, Input: r.Input, Payload: r.Payload}
}

type metrics struct {
	requests  *prometheus.CounterVec
	wsClients prometheus.Gauge
	pushed    *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fractalx_web_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "fractalx_web_ws_clients",
			Help: "Connected websocket clients",
		}),
		pushed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fractalx_web_values_pushed_total",
			Help: "Interface values pushed to websocket clients",
		}, []string{"interface"}),
	}
}

// Server is an interface handler that exposes a module over HTTP.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
	metrics  *metrics
	router   *gin.Engine

	mu      sync.RWMutex
	api     fractalx.API
	streams map[string]*stream.Stream[any]
	unsubs  map[string]func()
	clients map[*client]struct{}
}

// New creates a server. Routes are registered at once; nothing listens until
// ListenAndServe.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.WSRate == 0 {
		cfg.WSRate = 20
	}
	if cfg.WSBurst == 0 {
		cfg.WSBurst = 10
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		validate: validator.New(),
		metrics:  newMetrics(cfg.Registry),
		streams:  make(map[string]*stream.Stream[any]),
		unsubs:   make(map[string]func()),
		clients:  make(map[*client]struct{}),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.instrument())
	if cfg.TracerProvider != nil {
		router.Use(otelgin.Middleware("fractalx-web", otelgin.WithTracerProvider(cfg.TracerProvider)))
	}
	router.GET("/interfaces/:name", s.handleInterface)
	router.POST("/dispatch", s.handleDispatch)
	router.GET("/ws", s.handleWebSocket)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	s.router = router
	return s
}

// Factory binds the server to the interface called name.
func (s *Server) Factory(name string) fractalx.HandlerFactory {
	return func(api fractalx.API) fractalx.InterfaceHandler {
		s.mu.Lock()
		s.api = api
		s.mu.Unlock()
		return &binding{server: s, name: name}
	}
}

// Handler returns the HTTP handler of every route.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web handler listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Interfaces returns the names of the bound interfaces.
func (s *Server) Interfaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNames(s.streams)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) bind(name string, st *stream.Stream[any]) {
	s.mu.Lock()
	if unsub, ok := s.unsubs[name]; ok {
		unsub()
	}
	s.streams[name] = st
	s.unsubs[name] = st.Subscribe(func(v any) { s.broadcast(name, v) })
	s.mu.Unlock()

	s.broadcast(name, st.Get())
}

func (s *Server) unbind(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unsub, ok := s.unsubs[name]; ok {
		unsub()
	}
	delete(s.unsubs, name)
	delete(s.streams, name)
}

func (s *Server) value(name string) (any, bool) {
	s.mu.RLock()
	st, ok := s.streams[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return st.Get(), true
}

func (s *Server) dispatch(req DispatchRequest) error {
	s.mu.RLock()
	api := s.api
	s.mu.RUnlock()
	if api == nil {
		return errors.New("no module attached")
	}
	return api.Dispatch(req.data())
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		s.logger.Debug("web request", "route", route, "code", code, "duration", time.Since(start))
	}
}

func (s *Server) handleInterface(c *gin.Context) {
	name := c.Param("name")
	v, ok := s.value(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "there is no interface '" + name + "'"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "value": v})
}

func (s *Server) handleDispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.dispatch(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// binding is the interface handler of one interface name.
type binding struct {
	server *Server
	name   string
}

func (b *binding) Attach(st *stream.Stream[any])   { b.server.bind(b.name, st) }
func (b *binding) Reattach(st *stream.Stream[any]) { b.server.bind(b.name, st) }
func (b *binding) Dispose()                        { b.server.unbind(b.name) }
