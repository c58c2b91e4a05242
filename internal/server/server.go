package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/metrics"
	"github.com/rainbowrelax/relax-cli/internal/session"
)

// Config holds the app shell configuration
type Config struct {
	Host  string
	Port  int
	Token string
	// DefaultMinutes is used when a start request omits minutes
	DefaultMinutes int
	Version        string
}

// Server is the HTTP app shell: it lists exercises, hosts the controller's
// session and optionally mounts the frame streams
type Server struct {
	config     Config
	exercises  *exercise.Registry
	controller *session.Controller
	metrics    *metrics.Manager
	gatherer   prometheus.Gatherer
	idempotent *IdempotencyStore
	streams    map[string]http.Handler
	httpServer *http.Server
}

// NewServer creates the app shell. gatherer may be nil to disable /metrics.
func NewServer(
	config Config,
	exercises *exercise.Registry,
	controller *session.Controller,
	metricsManager *metrics.Manager,
	gatherer prometheus.Gatherer,
) *Server {
	if config.DefaultMinutes <= 0 {
		config.DefaultMinutes = 5
	}
	if metricsManager == nil {
		metricsManager = metrics.NewDetachedManager()
	}
	return &Server{
		config:     config,
		exercises:  exercises,
		controller: controller,
		metrics:    metricsManager,
		gatherer:   gatherer,
		idempotent: NewIdempotencyStore(10 * time.Minute),
		streams:    make(map[string]http.Handler),
	}
}

// Mount serves a frame stream (WebSocket or SSE handler) on path. Must be
// called before Router or Start.
func (s *Server) Mount(path string, handler http.Handler) {
	s.streams[path] = handler
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods("GET").Name("root")
	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	r.HandleFunc("/v1/exercises", s.handleListExercises).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/v1/exercises/{id}", s.handleGetExercise).Methods("GET", "OPTIONS").Name("get-exercise")

	r.HandleFunc("/v1/session", s.handleStartSession).Methods("POST", "OPTIONS").Name("start-session")
	r.HandleFunc("/v1/session", s.handleGetSession).Methods("GET").Name("get-session")
	r.HandleFunc("/v1/session", s.handleStopSession).Methods("DELETE").Name("stop-session")
	r.HandleFunc("/v1/session", s.handleChangeSession).Methods("PATCH").Name("change-session")
	r.HandleFunc("/v1/session/{action}", s.handleSessionAction).Methods("POST", "OPTIONS").Name("session-action")

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET").Name("metrics")
	}
	for path, handler := range s.streams {
		r.Handle(path, handler).Methods("GET")
	}

	r.Use(PanicRecovery(s.metrics))
	r.Use(LogRequest())
	r.Use(RequestMetrics(s.metrics))
	r.Use(Cors())
	r.Use(BearerAuth(s.config.Token))
	r.Use(DrainAndCloseRequest())

	return r
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof(" > app shell listening on: [%s]", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app shell failed: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)))
}
