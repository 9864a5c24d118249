// Package api exposes the pipeline over HTTP: asynchronous analysis tasks,
// their status and results, and ranking queries over persisted analyses.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/ranking"
)

// Tasks is the task registry the API drives.
type Tasks interface {
	Submit(params domain.RunParams) (domain.Task, error)
	Get(id string) (domain.Task, error)
	Result(id string) (*domain.Report, error)
	Delete(id string) error
	List() []domain.Task
	Active() int
	Shutdown(ctx context.Context) error
}

// Ranker answers ranking queries.
type Ranker interface {
	Query(q ranking.Query) (*ranking.Result, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    time.Minute,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server serves the HTTP API.
type Server struct {
	tasks  Tasks
	ranker Ranker
	cfg    Config
	router *mux.Router
	now    func() time.Time
}

// New creates a server and registers its routes.
func New(tasks Tasks, ranker Ranker, cfg Config) *Server {
	s := &Server{
		tasks:  tasks,
		ranker: ranker,
		cfg:    cfg,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/status/{task_id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/result/{task_id}", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/ranking", s.handleRanking).Methods(http.MethodGet)
	r.HandleFunc("/task/{task_id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/tasks", s.handleTasks).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Rota não encontrada")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Método não permitido")
	})
	r.Use(logRequests)
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then stops accepting
// requests and waits for running tasks within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("api shutting down", "active_tasks", s.tasks.Active())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	httpErr := srv.Shutdown(shutdownCtx)
	taskErr := s.tasks.Shutdown(shutdownCtx)
	return errors.Join(httpErr, taskErr)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
