package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// scriptFile is the file name reported in script diagnostics.
const scriptFile = "main.star"

var scriptOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// ScriptEvaluator executes Starlark programs and captures what they print.
// Every call runs in a fresh module, so nothing carries over between runs.
type ScriptEvaluator struct {
	// MaxSteps bounds the number of interpreter steps. Zero means unlimited.
	MaxSteps uint64
}

// NewScriptEvaluator creates a script evaluator.
func NewScriptEvaluator(maxSteps uint64) *ScriptEvaluator {
	return &ScriptEvaluator{MaxSteps: maxSteps}
}

// Run executes script and returns its printed output, one line per print
// call. On failure the output is discarded and a *ScriptError is returned.
// Cancelling ctx interrupts the script.
func (e *ScriptEvaluator) Run(ctx context.Context, script string) (out string, err error) {
	var buf strings.Builder
	thread := &starlark.Thread{
		Name: "datagym",
		Print: func(_ *starlark.Thread, msg string) {
			buf.WriteString(msg)
			buf.WriteByte('\n')
		},
	}
	if e.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.MaxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("script interpreter panic", "panic", r)
			out = ""
			err = &ScriptError{Message: fmt.Sprintf("%v", r)}
		}
	}()

	if _, err := starlark.ExecFileOptions(scriptOptions, thread, scriptFile, script, predeclared()); err != nil {
		return "", &ScriptError{Message: err.Error(), Err: err}
	}
	return buf.String(), nil
}

// predeclared returns the modules visible to every script.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"math":   math.Module,
		"json":   json.Module,
		"time":   time.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}
