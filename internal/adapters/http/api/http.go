// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	repository "github.com/resqlab/pulsecoach/internal/adapters/repository"
	"github.com/resqlab/pulsecoach/internal/app"
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/guide"
	"github.com/resqlab/pulsecoach/internal/domain/model"
	"github.com/resqlab/pulsecoach/internal/domain/pose"
	"github.com/resqlab/pulsecoach/internal/domain/score"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Session lifecycle and tick processing.
	StartSession(ctx context.Context, traineeID string) (string, error)
	Submit(ctx context.Context, sessionID string, sample pose.Sample) (score.Snapshot, []feedback.Event, bool, error)
	Snapshot(ctx context.Context, sessionID string) (score.Snapshot, error)
	ResetSession(ctx context.Context, sessionID string) error
	StopSession(ctx context.Context, sessionID string) (model.Summary, error)

	// Read operations expose ranking data.
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, traineeID string) (Entry, error)

	// Guide exposes the walkthrough and Q&A knowledge source.
	Guide() guide.Guide
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	guideHandler       *GuideHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionsHandler:    NewSessionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
		guideHandler:       NewGuideHandler(deps.Guide()),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSession, "session"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/guide/steps", MetricsMiddleware(s.guideHandler.HandleSteps, "guide_steps"))
	mux.HandleFunc("/guide/checklist", MetricsMiddleware(s.guideHandler.HandleChecklist, "guide_checklist"))
	mux.HandleFunc("/guide/ask", MetricsMiddleware(s.guideHandler.HandleAsk, "guide_ask"))
}

// keypointPayload is a landmark in the sample request body; a null or
// absent landmark means the provider had no detection for this frame.
type keypointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p *keypointPayload) toKeypoint() pose.Keypoint {
	if p == nil {
		return pose.Absent
	}
	return pose.At(p.X, p.Y)
}

// samplePayload mirrors the POST /sessions/{id}/samples request schema.
type samplePayload struct {
	Timestamp     float64          `json:"timestamp"`
	LeftWrist     *keypointPayload `json:"left_wrist"`
	RightWrist    *keypointPayload `json:"right_wrist"`
	LeftShoulder  *keypointPayload `json:"left_shoulder"`
	RightShoulder *keypointPayload `json:"right_shoulder"`
}

func (p samplePayload) validate() error {
	if p.Timestamp < 0 {
		return errors.New("timestamp must not be negative")
	}
	return nil
}

func (p samplePayload) toSample() pose.Sample {
	return pose.Sample{
		LeftWrist:     p.LeftWrist.toKeypoint(),
		RightWrist:    p.RightWrist.toKeypoint(),
		LeftShoulder:  p.LeftShoulder.toKeypoint(),
		RightShoulder: p.RightShoulder.toKeypoint(),
		Timestamp:     p.Timestamp,
	}
}

// tickResponse is the body returned for each processed sample.
type tickResponse struct {
	Snapshot score.Snapshot   `json:"snapshot"`
	Feedback []feedback.Event `json:"feedback"`
	Beat     bool             `json:"beat"`
}

type startSessionRequest struct {
	TraineeID string `json:"trainee_id"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, app.ErrSessionNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
