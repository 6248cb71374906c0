package quiz

import (
	"errors"
	"fmt"
)

// Recoverable collaborator failures. They are attached to the current round and
// never touch recorded history.
var (
	ErrProviderUnavailable = errors.New("question provider unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrEvaluationFailed    = errors.New("evaluation failed")
)

var (
	// ErrInvalidAction is returned when an action makes no sense in the current state.
	ErrInvalidAction = errors.New("action not allowed in current state")
	// ErrVoiceUnavailable is returned by StartCapture when no recorder or transcriber is configured.
	ErrVoiceUnavailable = errors.New("voice capture is not configured")
)

// classify wraps err with kind unless it already matches it.
func classify(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// invariant panics when cond is false. Used for states the machine can never reach.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("quiz: invariant violated: "+format, args...))
	}
}
