package evaluator

import "errors"

// Sentinel errors for classifying evaluation failures.
var (
	// ErrQuery is matched by every *QueryError.
	ErrQuery = errors.New("query error")

	// ErrScript is matched by every *ScriptError.
	ErrScript = errors.New("script error")
)

// QueryError is a failed query evaluation. Message is the engine
// diagnostic, unmodified.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return e.Message
}

// Unwrap returns the underlying engine error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// ScriptError is a failed script evaluation. Any output produced before the
// failure is discarded.
type ScriptError struct {
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Unwrap returns the underlying interpreter error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrScript.
func (e *ScriptError) Is(target error) bool {
	return target == ErrScript
}
