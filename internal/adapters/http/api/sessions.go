// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/resqlab/pulsecoach/internal/app"
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
)

// SessionsHandler handles session lifecycle and sample ingestion.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleSessions handles POST /sessions requests.
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.TraineeID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing trainee_id")))
		return
	}

	id, err := h.deps.StartSession(r.Context(), req.TraineeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id})
}

// HandleSession routes requests under /sessions/{id}:
//
//	GET    /sessions/{id}          latest snapshot
//	DELETE /sessions/{id}          end session, returns the summary
//	POST   /sessions/{id}/samples  one analysis tick
//	POST   /sessions/{id}/reset    clear session state
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"

	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	sessionID, action, _ := strings.Cut(path, "/")
	if sessionID == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleSnapshot(w, r, sessionID)
	case action == "" && r.Method == http.MethodDelete:
		h.handleStop(w, r, sessionID)
	case action == "samples" && r.Method == http.MethodPost:
		h.handleSample(w, r, sessionID)
	case action == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, sessionID)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionsHandler) handleSample(w http.ResponseWriter, r *http.Request, sessionID string) {
	const op = "api.post_sample"

	var req samplePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	snap, events, beat, err := h.deps.Submit(r.Context(), sessionID, req.toSample())
	if err != nil {
		h.writeSessionError(w, op, err)
		return
	}
	if events == nil {
		events = []feedback.Event{}
	}
	writeJSON(w, http.StatusOK, tickResponse{Snapshot: snap, Feedback: events, Beat: beat})
}

func (h *SessionsHandler) handleSnapshot(w http.ResponseWriter, r *http.Request, sessionID string) {
	const op = "api.get_session"

	snap, err := h.deps.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionsHandler) handleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	const op = "api.reset_session"

	if err := h.deps.ResetSession(r.Context(), sessionID); err != nil {
		h.writeSessionError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleStop(w http.ResponseWriter, r *http.Request, sessionID string) {
	const op = "api.stop_session"

	summary, err := h.deps.StopSession(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *SessionsHandler) writeSessionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, app.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
