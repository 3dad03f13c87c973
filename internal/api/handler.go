// Package api provides HTTP handlers for the DataGym API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/identity"
	"github.com/ashureev/datagym/internal/lab"
	"github.com/ashureev/datagym/internal/logging"
	"github.com/ashureev/datagym/internal/store"
	"github.com/ashureev/datagym/internal/workspace"
	"github.com/gorilla/sessions"
)

// Runner evaluates a submission on a workspace.
type Runner interface {
	Run(ctx context.Context, ws *workspace.Workspace, track domain.Track, code string) (*lab.Report, error)
}

// Options carries the settings handlers report or enforce.
type Options struct {
	QueryEngine    string
	MaxUploadBytes int64
}

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	workspaces *workspace.Manager
	runner     Runner
	sessions   sessions.Store
	opts       Options
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, workspaces *workspace.Manager, runner Runner, sessionStore sessions.Store, opts Options) *Handler {
	return &Handler{
		repo:       repo,
		workspaces: workspaces,
		runner:     runner,
		sessions:   sessionStore,
		opts:       opts,
	}
}

// JSON writes a JSON response with the given status code.
// The body is encoded before the status is written, so an unencodable
// value yields a 500 instead of a truncated success.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Resolve returns the workspace of the requesting tab, keeping its account
// binding in step with the login session.
func (h *Handler) Resolve(ctx context.Context) (*workspace.Workspace, error) {
	ws := h.workspaces.Get(workspace.Key{
		DeviceID:  identity.DeviceIDFromContext(ctx),
		SessionID: identity.SessionIDFromContext(ctx),
	})

	accountID := identity.AccountIDFromContext(ctx)
	bound, _ := ws.Account()
	switch {
	case accountID == bound:
	case accountID == "":
		ws.Unbind()
	default:
		account, err := h.repo.GetAccount(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			logging.FromContext(ctx).Warn("login session names unknown account", "user_id", accountID)
			ws.Unbind()
			return ws, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load account: %w", err)
		}
		ws.Bind(account)
	}
	return ws, nil
}

// workspace resolves the request's workspace, writing a 500 on failure.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := h.Resolve(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to resolve workspace", "error", err)
		Error(w, http.StatusInternalServerError, "workspace unavailable")
		return nil, false
	}
	return ws, true
}
