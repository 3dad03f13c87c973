package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/logging"
	"github.com/ashureev/datagym/internal/store"
	"github.com/ashureev/datagym/internal/workspace"
)

type meResponse struct {
	Username      string          `json:"username"`
	LoggedIn      bool            `json:"logged_in"`
	Progress      domain.Progress `json:"progress"`
	Level         int             `json:"level"`
	LevelProgress float64         `json:"level_progress"`
}

func (h *Handler) me(ws *workspace.Workspace) meResponse {
	accountID, username := ws.Account()
	p := ws.Progress()
	return meResponse{
		Username:      username,
		LoggedIn:      accountID != "",
		Progress:      p,
		Level:         p.Level(),
		LevelProgress: p.LevelProgress(),
	}
}

// GetMe returns the current learner's name and progress.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.me(ws))
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"query_engine":     h.opts.QueryEngine,
		"tracks":           domain.Tracks,
		"difficulties":     domain.Difficulties,
		"xp_per_task":      domain.XPPerTask,
		"xp_per_level":     domain.XPPerLevel,
		"max_upload_bytes": h.opts.MaxUploadBytes,
	})
}

// GetProfile returns the stored account with its radar chart values.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	accountID, _ := ws.Account()
	if accountID == "" {
		Error(w, http.StatusUnauthorized, "log in to view your profile")
		return
	}

	account, err := h.repo.GetAccount(r.Context(), accountID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusUnauthorized, "account not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to load profile", "user_id", accountID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	p := account.Progress()
	JSON(w, http.StatusOK, map[string]interface{}{
		"account":    account,
		"level":      p.Level(),
		"radar_axes": domain.RadarAxes,
		"radar":      p.Radar(),
	})
}

type lessonView struct {
	domain.Lesson
	DisplayKey string `json:"display_key"`
}

// ListLessons returns the lessons for a track and difficulty, defaulting
// to the workspace settings.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	track, difficulty := ws.Settings()

	if v := r.URL.Query().Get("track"); v != "" {
		t, err := domain.ParseTrack(v)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		track = t
	}
	if v := r.URL.Query().Get("difficulty"); v != "" {
		d, err := domain.ParseDifficulty(v)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		difficulty = d
	}

	lessons, err := h.repo.ListLessons(r.Context(), track, difficulty)
	if err != nil {
		logging.FromContext(r.Context()).Error("Failed to list lessons", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load lessons")
		return
	}

	views := make([]lessonView, len(lessons))
	for i := range lessons {
		views[i] = lessonView{Lesson: lessons[i], DisplayKey: lessons[i].DisplayKey()}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"track":      track,
		"difficulty": difficulty,
		"lessons":    views,
	})
}
