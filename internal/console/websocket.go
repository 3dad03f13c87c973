package console

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/lab"
	"github.com/ashureev/datagym/internal/workspace"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// Resolver finds the workspace of the requesting tab.
type Resolver interface {
	Resolve(ctx context.Context) (*workspace.Workspace, error)
}

// Runner evaluates a submission on a workspace.
type Runner interface {
	Run(ctx context.Context, ws *workspace.Workspace, track domain.Track, code string) (*lab.Report, error)
}

// Limiter throttles runs per device.
type Limiter interface {
	Allow(key string) bool
}

// WebSocketHandler serves the run console.
type WebSocketHandler struct {
	resolver      Resolver
	runner        Runner
	limiter       Limiter
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. limiter may be nil.
func NewWebSocketHandler(resolver Resolver, runner Runner, limiter Limiter, sm *SessionManager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		resolver:      resolver,
		runner:        runner,
		limiter:       limiter,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// inbound is a client message.
type inbound struct {
	Type  string `json:"type"`
	Track string `json:"track,omitempty"`
	Code  string `json:"code,omitempty"`
}

// outbound is a server message.
type outbound struct {
	Type   string      `json:"type"`
	Report *lab.Report `json:"report,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := h.resolver.Resolve(r.Context())
	if err != nil {
		slog.Error("Failed to resolve workspace", "error", err)
		http.Error(w, "workspace unavailable", http.StatusInternalServerError)
		return
	}
	key := ws.Key()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "workspace", key.String())
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "workspace", key.String())
		}
	}()

	h.sm.Register(key, conn)
	defer h.sm.Unregister(key, conn)

	slog.Info("Console session started", "workspace", key.String())
	h.readLoop(r.Context(), conn, ws)
	slog.Info("Console session ended", "workspace", key.String())
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, ws *workspace.Workspace) {
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "workspace", ws.Key().String())
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "workspace", ws.Key().String())
			}
			return
		}
		ws.Touch()

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			if err := h.writeJSON(ctx, conn, outbound{Type: "error", Error: "invalid message"}); err != nil {
				return
			}
			continue
		}

		var reply outbound
		switch msg.Type {
		case "ping":
			reply = outbound{Type: "pong"}
		case "run":
			reply = h.run(ctx, ws, msg)
		default:
			reply = outbound{Type: "error", Error: "unknown message type"}
		}
		if err := h.writeJSON(ctx, conn, reply); err != nil {
			slog.Debug("Failed to send reply", "error", err, "type", reply.Type)
			return
		}
	}
}

func (h *WebSocketHandler) run(ctx context.Context, ws *workspace.Workspace, msg inbound) outbound {
	if h.limiter != nil && !h.limiter.Allow(ws.Key().DeviceID) {
		return outbound{Type: "error", Error: "rate limit exceeded"}
	}

	track, _ := ws.Settings()
	if msg.Track != "" {
		t, err := domain.ParseTrack(msg.Track)
		if err != nil {
			return outbound{Type: "error", Error: err.Error()}
		}
		track = t
	}

	report, err := h.runner.Run(ctx, ws, track, msg.Code)
	switch {
	case errors.Is(err, lab.ErrNoDataset), errors.Is(err, lab.ErrRunInProgress):
		return outbound{Type: "error", Error: err.Error()}
	case err != nil:
		slog.Error("Console run failed", "error", err, "workspace", ws.Key().String())
		return outbound{Type: "error", Error: "run failed"}
	}
	return outbound{Type: "result", Report: report}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
