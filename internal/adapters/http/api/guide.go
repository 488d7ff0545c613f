// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/resqlab/pulsecoach/internal/domain/guide"
)

// GuideHandler serves the walkthrough steps, the emergency checklist and
// free-form questions.
type GuideHandler struct {
	guide guide.Guide
}

// NewGuideHandler creates a new guide handler.
func NewGuideHandler(g guide.Guide) *GuideHandler {
	return &GuideHandler{guide: g}
}

type stepsResponse struct {
	Steps []string `json:"steps"`
}

type checklistResponse struct {
	Checklist []string `json:"checklist"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// HandleSteps handles GET /guide/steps requests.
func (h *GuideHandler) HandleSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, stepsResponse{Steps: h.guide.Steps()})
}

// HandleChecklist handles GET /guide/checklist requests.
func (h *GuideHandler) HandleChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, checklistResponse{Checklist: h.guide.EmergencyChecklist()})
}

// HandleAsk handles POST /guide/ask requests.
func (h *GuideHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	const op = "api.guide_ask"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing question")))
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: h.guide.Answer(req.Question)})
}
