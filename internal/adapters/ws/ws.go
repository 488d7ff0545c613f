// Package ws streams coaching sessions over a WebSocket: pose samples in,
// score snapshots, coaching messages and metronome flashes out.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/model"
	"github.com/resqlab/pulsecoach/internal/domain/pose"
	"github.com/resqlab/pulsecoach/internal/domain/score"
	"github.com/resqlab/pulsecoach/pkg/logger"
	"github.com/resqlab/pulsecoach/pkg/metrics"
)

// Connection tuning constants.
const (
	readBufferSize  = 4096
	writeBufferSize = 4096
	maxMessageSize  = 64 * 1024
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second
)

// Dependencies required by the streaming handler.
type Dependencies interface {
	StartSession(ctx context.Context, traineeID string) (string, error)
	Submit(ctx context.Context, sessionID string, sample pose.Sample) (score.Snapshot, []feedback.Event, bool, error)
	ResetSession(ctx context.Context, sessionID string) error
	StopSession(ctx context.Context, sessionID string) (model.Summary, error)
}

// clientMessage is what the browser sends: a session command or a frame.
type clientMessage struct {
	Type      string         `json:"type"`
	TraineeID string         `json:"trainee_id,omitempty"`
	Sample    *samplePayload `json:"sample,omitempty"`
}

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

type samplePayload struct {
	Timestamp     float64          `json:"timestamp"`
	LeftWrist     *keypointPayload `json:"left_wrist"`
	RightWrist    *keypointPayload `json:"right_wrist"`
	LeftShoulder  *keypointPayload `json:"left_shoulder"`
	RightShoulder *keypointPayload `json:"right_shoulder"`
}

func (p *samplePayload) toSample() pose.Sample {
	return pose.Sample{
		LeftWrist:     p.LeftWrist.toKeypoint(),
		RightWrist:    p.RightWrist.toKeypoint(),
		LeftShoulder:  p.LeftShoulder.toKeypoint(),
		RightShoulder: p.RightShoulder.toKeypoint(),
		Timestamp:     p.Timestamp,
	}
}

// serverMessage is the envelope for everything pushed to the client.
type serverMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type tickData struct {
	Snapshot score.Snapshot   `json:"snapshot"`
	Feedback []feedback.Event `json:"feedback"`
	Beat     bool             `json:"beat"`
}

// Handler upgrades HTTP connections and runs the per-client session loop.
type Handler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.Mutex
	clients int
}

// NewHandler creates a streaming handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.Get().Named("ws"),
	}
}

// HandleStream handles GET /ws requests. One connection drives at most
// one live session; closing the connection ends the session.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.trackClient(1)
	defer h.trackClient(-1)
	h.logger.Info(ctx, "websocket client connected", logger.String("remote", conn.RemoteAddr().String()))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	// Writes are serialized through writeMu: the ping routine and the
	// session loop share the connection.
	var writeMu sync.Mutex
	go h.pingRoutine(ctx, conn, &writeMu, done, closeDone)

	// Session bound to this connection, if any.
	var sessionID string
	defer func() {
		if sessionID != "" {
			if _, err := h.deps.StopSession(context.WithoutCancel(ctx), sessionID); err != nil {
				h.logger.Error(ctx, "failed to stop session on disconnect",
					logger.String("sessionID", sessionID),
					logger.Error(err),
				)
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
			var message clientMessage
			if err := conn.ReadJSON(&message); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Error(ctx, "websocket read failed", logger.Error(err))
				}
				closeDone()
				return
			}
			sessionID = h.handleMessage(ctx, conn, &writeMu, sessionID, &message)
		}
	}
}

// handleMessage dispatches one client message and returns the (possibly
// updated) session id bound to the connection.
func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, sessionID string, message *clientMessage) string {
	switch message.Type {
	case "start":
		if sessionID != "" {
			h.sendError(ctx, conn, writeMu, "session already started")
			return sessionID
		}
		if strings.TrimSpace(message.TraineeID) == "" {
			h.sendError(ctx, conn, writeMu, "missing trainee_id")
			return sessionID
		}
		id, err := h.deps.StartSession(ctx, message.TraineeID)
		if err != nil {
			h.sendError(ctx, conn, writeMu, "failed to start session")
			return sessionID
		}
		h.send(ctx, conn, writeMu, "started", map[string]string{"session_id": id})
		return id

	case "sample":
		if sessionID == "" || message.Sample == nil {
			h.sendError(ctx, conn, writeMu, "no session or missing sample")
			return sessionID
		}
		snap, events, beat, err := h.deps.Submit(ctx, sessionID, message.Sample.toSample())
		if err != nil {
			h.sendError(ctx, conn, writeMu, "sample processing failed")
			return sessionID
		}
		if events == nil {
			events = []feedback.Event{}
		}
		h.send(ctx, conn, writeMu, "tick", tickData{Snapshot: snap, Feedback: events, Beat: beat})
		return sessionID

	case "reset":
		if sessionID == "" {
			h.sendError(ctx, conn, writeMu, "no session")
			return sessionID
		}
		if err := h.deps.ResetSession(ctx, sessionID); err != nil {
			h.sendError(ctx, conn, writeMu, "reset failed")
			return sessionID
		}
		h.send(ctx, conn, writeMu, "reset_done", nil)
		return sessionID

	case "stop":
		if sessionID == "" {
			h.sendError(ctx, conn, writeMu, "no session")
			return sessionID
		}
		summary, err := h.deps.StopSession(ctx, sessionID)
		if err != nil {
			h.sendError(ctx, conn, writeMu, "stop failed")
			return ""
		}
		h.send(ctx, conn, writeMu, "summary", summary)
		return ""

	case "ping":
		h.send(ctx, conn, writeMu, "pong", map[string]any{"timestamp": time.Now().Unix()})
		return sessionID

	default:
		h.logger.Warn(ctx, "unknown websocket message type", logger.String("type", message.Type))
		h.sendError(ctx, conn, writeMu, "unknown message type: "+message.Type)
		return sessionID
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, messageType string, data any) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(serverMessage{Type: messageType, Data: data}); err != nil {
		h.logger.Error(ctx, "websocket write failed", logger.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, msg string) {
	h.send(ctx, conn, writeMu, "error", map[string]any{
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) pingRoutine(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, done chan struct{}, closeDone func()) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				h.logger.Error(ctx, "failed to send ping", logger.Error(err))
				closeDone()
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) trackClient(delta int) {
	h.mu.Lock()
	h.clients += delta
	count := h.clients
	h.mu.Unlock()
	metrics.UpdateWSClients(count)
}
