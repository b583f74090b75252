package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
	"github.com/nupi-ai/gitdaemon/internal/job"
)

// handleJobsSubroute dispatches GET /v1/jobs/{id}, GET /v1/jobs/{id}/stream,
// and POST /v1/jobs/{id}/cancel, per spec.md §6's resource paths.
func (s *Server) handleJobsSubroute(w http.ResponseWriter, r *http.Request, origin string) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		writeAPIError(w, apierr.JobNotFound())
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]

	j, ok := s.jobs.Get(id)
	if !ok {
		writeAPIError(w, apierr.JobNotFound())
		return
	}

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, j.Snapshot())
		return
	}

	switch parts[1] {
	case "stream":
		s.streamJob(w, r, j)
	case "cancel":
		s.cancelJob(w, id)
	default:
		writeAPIError(w, apierr.JobNotFound())
	}
}

// streamJob implements spec.md §4.6's SSE replay-then-follow contract: on
// subscribe, replay the buffered ring, then forward live events until a
// terminal state event or client disconnect.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request, j *job.Job) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, apierr.Internal("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	replay, live, unsubscribe := j.Subscribe()
	defer unsubscribe()

	for _, ev := range replay {
		if !writeSSEEvent(w, ev) {
			return
		}
		flusher.Flush()
		if ev.Kind == job.EventState && ev.State.Terminal() {
			return
		}
	}

	for {
		select {
		case ev, ok := <-live:
			if !ok {
				return
			}
			if !writeSSEEvent(w, ev) {
				return
			}
			flusher.Flush()
			if ev.Kind == job.EventState && ev.State.Terminal() {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev job.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err == nil
}

// cancelJob implements spec.md §4.6's cancel(id).
func (s *Server) cancelJob(w http.ResponseWriter, id string) {
	accepted, alreadyTerminal, err := s.jobs.Cancel(id)
	if err != nil {
		writeAPIError(w, apierr.JobNotFound())
		return
	}
	if alreadyTerminal {
		writeAPIError(w, apierr.Conflict("job has already reached a terminal state"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}
