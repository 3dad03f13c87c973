// Package lab runs a learner's submission against the workspace and awards
// experience on success.
package lab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/datagym/internal/dataset"
	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/evaluator"
	"github.com/ashureev/datagym/internal/workspace"
)

var (
	// ErrNoDataset is returned for a SQL run before any dataset is loaded.
	ErrNoDataset = errors.New("no dataset loaded: upload a file first")

	// ErrRunInProgress is returned when the workspace is already running code.
	ErrRunInProgress = errors.New("a run is already in progress")
)

var (
	_ QueryRunner  = (*evaluator.QueryEvaluator)(nil)
	_ ScriptRunner = (*evaluator.ScriptEvaluator)(nil)
)

// QueryRunner evaluates SQL against a dataset.
type QueryRunner interface {
	Run(ctx context.Context, query string, ds *dataset.Dataset, tableName string) (*dataset.Dataset, error)
}

// ScriptRunner evaluates a script and returns what it printed.
type ScriptRunner interface {
	Run(ctx context.Context, script string) (string, error)
}

// ProgressStore persists progress for logged-in learners.
type ProgressStore interface {
	AddProgress(ctx context.Context, userID string, xp, tasks int) (domain.Progress, error)
}

// Report is the outcome of one run.
type Report struct {
	OK         bool             `json:"ok"`
	Track      domain.Track     `json:"track"`
	Table      *dataset.Dataset `json:"table,omitempty"`
	Output     *string          `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	Progress   domain.Progress  `json:"progress"`
	Level      int              `json:"level"`
}

// Runner dispatches submissions to the evaluator for their track.
type Runner struct {
	queries  QueryRunner
	scripts  ScriptRunner
	progress ProgressStore
	timeout  time.Duration
}

// NewRunner creates a runner. A zero timeout lets runs go to completion.
func NewRunner(queries QueryRunner, scripts ScriptRunner, progress ProgressStore, timeout time.Duration) *Runner {
	return &Runner{
		queries:  queries,
		scripts:  scripts,
		progress: progress,
		timeout:  timeout,
	}
}

// Run evaluates code on ws for the given track. Evaluation failures are
// reported in the Report; the returned error covers only ErrNoDataset,
// ErrRunInProgress and progress store failures.
func (r *Runner) Run(ctx context.Context, ws *workspace.Workspace, track domain.Track, code string) (*Report, error) {
	ws.Touch()
	if !ws.TryBeginRun() {
		return nil, ErrRunInProgress
	}
	defer func() {
		ws.Touch()
		ws.EndRun()
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	report := &Report{Track: track}
	start := time.Now()
	var evalErr error

	switch track {
	case domain.TrackSQL:
		reg := ws.Registration()
		if reg == nil {
			return nil, ErrNoDataset
		}
		report.Table, evalErr = r.queries.Run(ctx, code, reg.Dataset, reg.TableName)
	case domain.TrackPython:
		var out string
		out, evalErr = r.scripts.Run(ctx, code)
		if evalErr == nil {
			report.Output = &out
		}
	default:
		return nil, fmt.Errorf("unknown track %q", track)
	}
	report.DurationMS = time.Since(start).Milliseconds()

	if evalErr != nil {
		report.Error = evalErr.Error()
		report.Progress = ws.Progress()
		report.Level = report.Progress.Level()
		slog.Debug("run failed", "workspace", ws.Key().String(), "track", track, "error", evalErr)
		return report, nil
	}

	report.OK = true
	p, err := r.award(ctx, ws)
	if err != nil {
		return nil, err
	}
	report.Progress = p
	report.Level = p.Level()
	return report, nil
}

// award adds one completed task. Logged-in learners are updated in the
// store and the workspace copy follows the stored totals.
func (r *Runner) award(ctx context.Context, ws *workspace.Workspace) (domain.Progress, error) {
	accountID, _ := ws.Account()
	if accountID == "" || r.progress == nil {
		return ws.Award(), nil
	}
	p, err := r.progress.AddProgress(context.WithoutCancel(ctx), accountID, domain.XPPerTask, 1)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("save progress: %w", err)
	}
	ws.SetProgress(p)
	return p, nil
}
