package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/caiber/internal/event"
	"github.com/nao1215/caiber/internal/pipeline"
)

// Default timeouts.
const (
	DefaultHeartbeat       = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Pipeline is the part of pipeline.Controller the API drives.
type Pipeline interface {
	Launch(ctx context.Context, initial any) (*pipeline.RunHandle, error)
	Reset()
	Snapshot() pipeline.Snapshot
	Results() map[pipeline.StageID]any
	Result(id pipeline.StageID) (any, error)
	Now() time.Time
}

var _ Pipeline = (*pipeline.Controller)(nil)

// Archiver stores finished runs. database.HistoryDB implements it.
type Archiver interface {
	SaveRun(ctx context.Context, sessionID string, snap pipeline.Snapshot, results map[pipeline.StageID]any) error
}

// Server serves the control API for one pipeline.
type Server struct {
	pipeline  Pipeline
	broker    *event.Broker
	archive   Archiver
	logger    *slog.Logger
	heartbeat time.Duration

	// runCtx outlives requests; runs started through the API use it.
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithArchiver archives every run that finishes.
func WithArchiver(a Archiver) Option {
	return func(s *Server) {
		s.archive = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHeartbeat sets how often an idle event stream sends a keep-alive
// comment.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates a Server. broker must also be registered as a sink of p so
// the events route has something to stream.
func New(p Pipeline, broker *event.Broker, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		broker:    broker,
		logger:    slog.Default(),
		heartbeat: DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/api/v1/pipeline", func(r chi.Router) {
		r.Get("/", s.getPipeline)
		r.Post("/start", s.start)
		r.Post("/reset", s.reset)
		r.Get("/events", s.events)
		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.results)
			r.Get("/{stage}", s.result)
		})
	})
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// the HTTP server down, resets the pipeline and waits for pending archive
// writes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("control API listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		// Event streams never end on their own.
		s.broker.Close()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	})
	return g.Wait()
}

// Close discards any run in progress and waits for archive writes.
func (s *Server) Close() {
	s.pipeline.Reset()
	s.cancelRun()
	s.wg.Wait()
}

// archiveWhenDone saves the run behind h once it finishes, even when a
// later run has already replaced it. A run that is reset before finishing
// is not archived.
func (s *Server) archiveWhenDone(h *pipeline.RunHandle, sessionID string) {
	defer s.wg.Done()

	snap, err := h.Wait(s.runCtx)
	if errors.Is(err, pipeline.ErrRunReset) || !snap.Status.Terminal() || snap.RunID != h.ID() {
		return
	}
	if s.runCtx.Err() != nil {
		return
	}
	if err := s.archive.SaveRun(s.runCtx, sessionID, snap, h.Results()); err != nil {
		s.logger.Error("failed to archive run", "run_id", h.ID(), "error", err)
		return
	}
	s.logger.Debug("run archived", "run_id", h.ID(), "status", snap.Status,
		"completed_stages", snap.Completed(), "stages", len(snap.Stages))
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
