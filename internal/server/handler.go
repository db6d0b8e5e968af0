package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/caiber/internal/event"
	"github.com/nao1215/caiber/internal/pipeline"
)

// maxRequestBody bounds the start request body.
const maxRequestBody = 1 << 16

// StartRequest is the body of POST /api/v1/pipeline/start.
type StartRequest struct {
	SessionID string `json:"session_id"`
}

// StartResponse is returned when a run was started.
type StartResponse struct {
	RunID string `json:"run_id"`
}

// PipelineResponse is a snapshot plus the elapsed time measured by the
// server clock.
type PipelineResponse struct {
	pipeline.Snapshot
	ElapsedMS       int64 `json:"elapsed_ms"`
	CompletedStages int   `json:"completed_stages"`
}

func (s *Server) pipelineResponse() PipelineResponse {
	snap := s.pipeline.Snapshot()
	return PipelineResponse{
		Snapshot:        snap,
		ElapsedMS:       snap.Elapsed(s.pipeline.Now()).Milliseconds(),
		CompletedStages: snap.Completed(),
	}
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	// Subscribers is the number of open event streams.
	Subscribers int `json:"subscribers"`
	// DroppedEvents counts events a slow stream missed.
	DroppedEvents uint64 `json:"dropped_events"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Subscribers:   s.broker.Subscribers(),
		DroppedEvents: s.broker.Dropped(),
	})
}

func (s *Server) getPipeline(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipelineResponse())
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, CodeInvalidRequestBody, "request body must be a JSON object")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeError(w, s.logger, http.StatusBadRequest, CodeSessionRequired, "session_id is required")
		return
	}

	h, err := s.pipeline.Launch(s.runCtx, sessionID)
	if err != nil {
		var concurrent *pipeline.ConcurrentRunError
		if errors.As(err, &concurrent) {
			writeError(w, s.logger, http.StatusConflict, CodeRunInProgress, err.Error())
			return
		}
		writeError(w, s.logger, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}
	s.logger.Info("pipeline run started", "run_id", h.ID(), "session_id", sessionID)

	if s.archive != nil {
		s.wg.Add(1)
		go s.archiveWhenDone(h, sessionID)
	}
	writeJSON(w, http.StatusAccepted, StartResponse{RunID: h.ID()})
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.Reset()
	writeJSON(w, http.StatusOK, s.pipelineResponse())
}

func (s *Server) results(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Results())
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id := pipeline.StageID(chi.URLParam(r, "stage"))
	if _, ok := s.pipeline.Snapshot().Stage(id); !ok {
		writeError(w, s.logger, http.StatusNotFound, CodeUnknownStage, "unknown stage: "+string(id))
		return
	}
	out, err := s.pipeline.Result(id)
	if err != nil {
		writeError(w, s.logger, http.StatusNotFound, CodeResultNotFound, "stage "+string(id)+" has no result in the current run")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// events streams pipeline events until the client goes away or the
// broker is closed. With ?run=<id> the stream also ends after that run's
// terminal event.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	follow := r.URL.Query().Get("run")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, s.logger, http.StatusInternalServerError, CodeStreamUnsupported, "streaming is not supported")
		return
	}

	ch, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := event.WriteSSE(w, e); err != nil {
				s.logger.Debug("event stream closed", "error", err, "dropped_events", s.broker.Dropped())
				return
			}
			flusher.Flush()
			if follow != "" && e.RunID == follow && e.Terminal() {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
