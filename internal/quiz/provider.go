package quiz

import (
	"context"
	"time"

	"github.com/phanngoc/olympia/internal/model"
)

// QuestionProvider supplies the next question. Failures should wrap ErrProviderUnavailable.
type QuestionProvider interface {
	FetchRandomQuestion(ctx context.Context) (model.Question, error)
}

// Transcriber turns captured audio into text. Failures should wrap ErrTranscriptionFailed.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Evaluator scores an answer for a question. Failures should wrap ErrEvaluationFailed.
type Evaluator interface {
	Evaluate(ctx context.Context, questionID int64, answer string) (model.Evaluation, error)
}

// Recorder captures audio until limit elapses or ctx is done, returning what was captured.
type Recorder interface {
	Record(ctx context.Context, limit time.Duration) ([]byte, error)
}

// CuePlayer plays an audio cue. Implementations swallow their own failures.
type CuePlayer interface {
	Play(cue model.Cue)
}

type nopPlayer struct{}

func (nopPlayer) Play(model.Cue) {}
