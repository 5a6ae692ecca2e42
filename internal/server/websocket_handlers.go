package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/homography"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// CaptureMessage is a client message on /ws/capture.
//
//	{"type": "click", "window": "a", "x": 10, "y": 20, "button": 1}
//	{"type": "finish"}
type CaptureMessage struct {
	Type   string  `json:"type"`
	Window string  `json:"window,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button,omitempty"`
}

// CaptureResponse is a server message on /ws/capture.
type CaptureResponse struct {
	Type      string             `json:"type"` // session, click, result, error
	SessionID string             `json:"session_id,omitempty"`
	State     string             `json:"state,omitempty"`
	Outcome   string             `json:"outcome,omitempty"`
	Pairs     int                `json:"pairs"`
	Estimate  *homography.Result `json:"estimate,omitempty"`
	Points    string             `json:"points,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// captureWebSocketHandler runs an interactive correspondence capture. Each
// click message drives a ClickRecorder; when the capture finishes (right
// click or finish message) the homography is estimated from the recorded
// pairs and sent back together with the points document, then the
// connection is closed.
func (s *Server) captureWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	sessionID := uuid.NewString()
	logger := s.logger.With("session_id", sessionID, "remote_addr", r.RemoteAddr)
	logger.Info("Capture session started")

	rec := capture.NewClickRecorder(logger)
	s.sendCaptureResponse(conn, CaptureResponse{Type: "session", SessionID: sessionID, State: rec.State().String()})

	ctx, cancel := context.WithTimeout(r.Context(), s.captureTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	for rec.State() != capture.Finished {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Capture connection closed", "error", err)
			}
			rec.Finish()
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleCaptureMessage(conn, rec, data)
	}

	s.finishCapture(ctx, conn, rec)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished"),
		time.Now().Add(time.Second))
}

func (s *Server) handleCaptureMessage(conn WebSocketConnWriter, rec *capture.ClickRecorder, data []byte) {
	var msg CaptureMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendCaptureError(conn, "invalid_request", fmt.Sprintf("Failed to parse message: %v", err))
		return
	}

	switch msg.Type {
	case "click":
		button := capture.Button(msg.Button)
		if button == 0 {
			button = capture.ButtonLeft
		}
		out, err := rec.Click(capture.Event{
			Window: capture.ParseWindow(msg.Window),
			Point:  homography.Point{X: msg.X, Y: msg.Y},
			Button: button,
		})
		if err != nil {
			s.sendCaptureError(conn, "capture_closed", err.Error())
			return
		}
		s.sendCaptureResponse(conn, CaptureResponse{
			Type:    "click",
			State:   rec.State().String(),
			Outcome: string(out),
			Pairs:   len(rec.Pairs()),
		})
	case "finish":
		rec.Finish()
	default:
		s.sendCaptureError(conn, "invalid_request", "Unsupported message type: "+msg.Type)
	}
}

func (s *Server) finishCapture(ctx context.Context, conn WebSocketConnWriter, rec *capture.ClickRecorder) {
	pairs := rec.Pairs()
	est, err := s.stitcher.Estimate(ctx, rec)
	if err != nil {
		stitchRequestsTotal.WithLabelValues("capture", "error").Inc()
		errType := "processing_error"
		if errors.Is(err, homography.ErrDegenerateInput) {
			errType = "degenerate_input"
		}
		s.sendCaptureResponse(conn, CaptureResponse{
			Type:      "error",
			State:     capture.Finished.String(),
			Pairs:     len(pairs),
			Error:     err.Error(),
			ErrorType: errType,
		})
		return
	}
	stitchRequestsTotal.WithLabelValues("capture", "success").Inc()
	observeEstimate(est)

	points, err := capture.Marshal(pairs)
	if err != nil {
		s.logger.Error("Failed to encode captured points", "error", err)
	}
	s.sendCaptureResponse(conn, CaptureResponse{
		Type:     "result",
		State:    capture.Finished.String(),
		Pairs:    len(pairs),
		Estimate: est,
		Points:   string(points),
	})
}

// sendCaptureResponse sends a response message over WebSocket.
func (s *Server) sendCaptureResponse(conn WebSocketConnWriter, response CaptureResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendCaptureError sends an error message over WebSocket.
func (s *Server) sendCaptureError(conn WebSocketConnWriter, errorType, message string) {
	s.sendCaptureResponse(conn, CaptureResponse{Type: "error", Error: message, ErrorType: errorType})
}
