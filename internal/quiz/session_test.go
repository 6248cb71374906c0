package quiz

import (
	"errors"
	"testing"
	"time"

	"github.com/phanngoc/olympia/internal/model"
)

func TestAnswerScoredAfterThreeSeconds(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.elapse(3)

	h.mustRun(h.s.SubmitTranscript("Hanoi"))

	snap := h.s.Snapshot()
	if snap.Round != RoundShowingResult {
		t.Fatalf("expected showing result, got %s", snap.Round)
	}
	if snap.Resolution != ResolvedByAnswer {
		t.Fatalf("expected resolved by answer, got %s", snap.Resolution)
	}
	if snap.LastResult == nil || snap.LastResult.Score != 85 || snap.LastResult.SubmittedAnswer != "Hanoi" {
		t.Fatalf("unexpected result: %+v", snap.LastResult)
	}
	if snap.Stats.Correct != 1 || snap.Stats.Resolved != 1 || snap.Stats.AverageScore != 85 {
		t.Fatalf("unexpected stats: %+v", snap.Stats)
	}
	if snap.Timer.Running || snap.Timer.Remaining != 7 {
		t.Fatalf("expected timer frozen at 7, got %+v", snap.Timer)
	}
	if h.player.last() != model.CueCorrect {
		t.Fatalf("expected correct cue, got %q", h.player.last())
	}
}

func TestTimeoutRecordsZeroWithoutEvaluator(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.elapse(10)

	snap := h.s.Snapshot()
	if snap.Round != RoundShowingResult || snap.Resolution != ResolvedByTimeout {
		t.Fatalf("expected timeout result, got %s/%s", snap.Round, snap.Resolution)
	}
	if len(h.evaluator.answers) != 0 {
		t.Fatalf("evaluator should not be called, got %v", h.evaluator.answers)
	}
	if len(snap.History) != 1 {
		t.Fatalf("expected one item, got %d", len(snap.History))
	}
	item := snap.History[0]
	if item.Score != 0 || item.SubmittedAnswer != NoAnswerMarker || item.Feedback != TimeoutFeedback {
		t.Fatalf("unexpected timeout item: %+v", item)
	}
	if item.Resolution != model.ResolutionTimeout || item.ExpectedAnswer != "Hanoi" {
		t.Fatalf("unexpected timeout item: %+v", item)
	}
	if snap.Timer.Remaining != 0 || snap.Timer.Running {
		t.Fatalf("unexpected timer state: %+v", snap.Timer)
	}
	if h.player.last() != model.CueIncorrect {
		t.Fatalf("expected incorrect cue, got %q", h.player.last())
	}

	// Extra ticks after expiry change nothing.
	h.elapse(3)
	if got := h.s.Snapshot().Stats.Resolved; got != 1 {
		t.Fatalf("expected one resolved round, got %d", got)
	}
}

func TestLateTranscriptAfterTimeoutIsDiscarded(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.elapse(6)

	cmd, err := h.s.StartCapture()
	if err != nil {
		t.Fatalf("start capture: %v", err)
	}
	late := collect(cmd)
	if h.s.Snapshot().Capture != CaptureRecording {
		t.Fatalf("expected recording, got %s", h.s.Snapshot().Capture)
	}

	h.elapse(4)
	for _, msg := range late {
		h.deliver(msg)
	}

	snap := h.s.Snapshot()
	if snap.Resolution != ResolvedByTimeout || snap.Stats.Resolved != 1 {
		t.Fatalf("expected timeout to win, got %s with %d items", snap.Resolution, snap.Stats.Resolved)
	}
	if snap.Capture != CaptureClosed {
		t.Fatalf("expected closed capture, got %s", snap.Capture)
	}
	if len(h.evaluator.answers) != 0 {
		t.Fatalf("late transcript reached evaluator: %v", h.evaluator.answers)
	}
}

func TestExpiryAfterAnswerIsIgnored(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.elapse(3)

	cmd, err := h.s.SubmitTranscript("Hanoi")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pending := collect(cmd)

	h.elapse(10)
	snap := h.s.Snapshot()
	if snap.Round != RoundAwaitingEvaluation || snap.Resolution != ResolvedByAnswer {
		t.Fatalf("expected awaiting evaluation, got %s/%s", snap.Round, snap.Resolution)
	}
	if snap.Stats.Resolved != 0 {
		t.Fatalf("expected no recorded rounds yet, got %d", snap.Stats.Resolved)
	}

	for _, msg := range pending {
		h.deliver(msg)
	}
	if got := h.s.Snapshot().Stats.Resolved; got != 1 {
		t.Fatalf("expected one resolved round, got %d", got)
	}
}

func TestVoiceCaptureSubmitsTranscript(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.mustRun(h.s.StartCapture())

	snap := h.s.Snapshot()
	if snap.Round != RoundShowingResult || snap.LastResult.SubmittedAnswer != "Hanoi" {
		t.Fatalf("unexpected state after capture: %s %+v", snap.Round, snap.LastResult)
	}
	if snap.Capture != CaptureClosed {
		t.Fatalf("expected closed capture, got %s", snap.Capture)
	}
	if len(h.player.cues) == 0 || h.player.cues[0] != model.CueRecording {
		t.Fatalf("expected recording cue first, got %v", h.player.cues)
	}
}

func TestCaptureLimitBoundedByRemainingTime(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.elapse(7)

	h.mustRun(h.s.StartCapture())
	if len(h.recorder.limits) != 1 || h.recorder.limits[0] != 3*time.Second {
		t.Fatalf("expected 3s recording limit, got %v", h.recorder.limits)
	}
}

func TestCaptureCapMovesToTranscribing(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()

	cmd, err := h.s.StartCapture()
	if err != nil {
		t.Fatalf("start capture: %v", err)
	}
	pending := collect(cmd)
	for _, msg := range h.ticker.take(5 * time.Second) {
		h.deliver(msg)
	}
	if got := h.s.Snapshot().Capture; got != CaptureTranscribing {
		t.Fatalf("expected transcribing, got %s", got)
	}
	if _, err := h.s.StopCapture(); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected stop after cap to be invalid, got %v", err)
	}
	for _, msg := range pending {
		h.deliver(msg)
	}
	if got := h.s.Snapshot().Round; got != RoundShowingResult {
		t.Fatalf("expected transcript after cap to resolve round, got %s", got)
	}
}

func TestEmptyTranscriptRearmsCapture(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.transcriber.text = "   "
	h.start()
	h.mustRun(h.s.StartCapture())

	snap := h.s.Snapshot()
	if snap.Round != RoundAwaitingAnswer || snap.Capture != CaptureIdle {
		t.Fatalf("expected rearmed capture, got %s/%s", snap.Round, snap.Capture)
	}
	if !errors.Is(snap.Err, ErrTranscriptionFailed) {
		t.Fatalf("expected transcription error, got %v", snap.Err)
	}

	h.transcriber.text = "Hanoi"
	h.mustRun(h.s.Retry())
	if got := h.s.Snapshot().Round; got != RoundShowingResult {
		t.Fatalf("expected retry capture to resolve round, got %s", got)
	}
}

func TestTranscriptionFailureKeepsTimerRunning(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.transcriber.err = errors.New("whisper: status 500")
	h.start()
	h.mustRun(h.s.StartCapture())

	snap := h.s.Snapshot()
	if !errors.Is(snap.Err, ErrTranscriptionFailed) {
		t.Fatalf("expected transcription error, got %v", snap.Err)
	}
	if !snap.Timer.Running || snap.Stats.Resolved != 0 {
		t.Fatalf("expected round still open, got %+v %+v", snap.Timer, snap.Stats)
	}
	h.elapse(10)
	if got := h.s.Snapshot().Resolution; got != ResolvedByTimeout {
		t.Fatalf("expected timeout, got %s", got)
	}
}

func TestBlankSubmitIsNoop(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	cmd, err := h.s.SubmitTranscript("  \t")
	if err != nil || cmd != nil {
		t.Fatalf("expected no-op, got %v %v", cmd, err)
	}
	if got := h.s.Snapshot().Round; got != RoundAwaitingAnswer {
		t.Fatalf("expected awaiting answer, got %s", got)
	}
}

func TestSessionCompletesAfterTotalQuestions(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	for i := 1; i <= 10; i++ {
		if got := h.s.Snapshot().Progress.Current; got != i {
			t.Fatalf("expected question %d, got %d", i, got)
		}
		h.mustRun(h.s.SubmitTranscript("Hanoi"))
		h.mustRun(h.s.Advance())
	}

	snap := h.s.Snapshot()
	if snap.State != SessionComplete {
		t.Fatalf("expected complete, got %s", snap.State)
	}
	if snap.Progress != (Progress{Current: 11, Total: 10}) {
		t.Fatalf("unexpected progress: %+v", snap.Progress)
	}
	if snap.Stats.Resolved != 10 || len(snap.History) != 10 {
		t.Fatalf("expected 10 items, got %+v", snap.Stats)
	}
	if h.player.last() != model.CueComplete {
		t.Fatalf("expected complete cue, got %q", h.player.last())
	}
	if _, err := h.s.Advance(); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected advance after completion to fail, got %v", err)
	}
}

func TestCompletionClearsRoundAndStampsTimes(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, model.Config{TotalQuestions: 1, AnswerSeconds: 10, CaptureSeconds: 5},
		WithClock(func() time.Time { return clock }))
	h.start()
	clock = clock.Add(90 * time.Second)
	h.mustRun(h.s.SubmitTranscript("Hanoi"))
	h.mustRun(h.s.Advance())

	snap := h.s.Snapshot()
	if snap.State != SessionComplete {
		t.Fatalf("expected complete, got %s", snap.State)
	}
	if snap.Question != nil || snap.LastResult != nil || snap.PendingAnswer != "" || snap.Err != nil {
		t.Fatalf("expected round fields cleared, got %+v", snap)
	}
	if snap.Round != RoundLoading || snap.Resolution != ResolutionPending || snap.Timer.Running {
		t.Fatalf("expected idle round state, got %s/%s %+v", snap.Round, snap.Resolution, snap.Timer)
	}
	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !snap.StartedAt.Equal(want) || !snap.EndedAt.Equal(want.Add(90*time.Second)) {
		t.Fatalf("unexpected times: %s - %s", snap.StartedAt, snap.EndedAt)
	}
	if len(snap.History) != 1 || snap.History[0].Score != 85 {
		t.Fatalf("history should survive completion: %+v", snap.History)
	}
}

func TestSkipWhileRecordingCancelsCapture(t *testing.T) {
	h := newHarness(t, model.Config{TotalQuestions: 1, AnswerSeconds: 10, CaptureSeconds: 5})
	h.start()
	capture, err := h.s.StartCapture()
	if err != nil {
		t.Fatalf("start capture: %v", err)
	}
	h.mustRun(h.s.Skip())

	if got := h.s.capture.Reason(); got != CloseCancelled {
		t.Fatalf("expected cancelled capture, got %s", got)
	}
	if got := h.s.Snapshot().Capture; got != CaptureClosed {
		t.Fatalf("expected closed capture, got %s", got)
	}
	h.run(capture)
	snap := h.s.Snapshot()
	if snap.Stats.Resolved != 0 || len(h.evaluator.answers) != 0 {
		t.Fatalf("transcript of a cancelled capture must be ignored: %+v %v", snap.Stats, h.evaluator.answers)
	}
}

func TestResetRestoresProgress(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.mustRun(h.s.SubmitTranscript("Hanoi"))
	h.mustRun(h.s.Advance())
	h.elapse(10)

	h.s.Reset()
	snap := h.s.Snapshot()
	if snap.State != SessionIdle || snap.Progress != (Progress{Current: 1, Total: 10}) {
		t.Fatalf("unexpected state after reset: %s %+v", snap.State, snap.Progress)
	}
	if len(snap.History) != 0 || snap.Stats != (AggregateStats{}) {
		t.Fatalf("expected empty history, got %+v", snap.Stats)
	}
	h.start()
	if got := h.s.Snapshot().Timer.Remaining; got != 10 {
		t.Fatalf("expected full timer, got %d", got)
	}
}

func TestStaleQuestionAfterResetIsDiscarded(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.provider.questions = []model.Question{
		{ID: 1, Prompt: "old", ExpectedAnswer: "a"},
		{ID: 2, Prompt: "new", ExpectedAnswer: "b"},
	}
	cmd, err := h.s.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	stale := collect(cmd)

	h.s.Reset()
	h.start()
	for _, msg := range stale {
		h.deliver(msg)
	}
	snap := h.s.Snapshot()
	if snap.Question == nil || snap.Question.Prompt != "new" {
		t.Fatalf("expected new question, got %+v", snap.Question)
	}
}

func TestProviderFailureRetryAndSkip(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.provider.err = errors.New("remote: connection refused")
	h.mustRun(h.s.Start())

	snap := h.s.Snapshot()
	if snap.Round != RoundLoading || !errors.Is(snap.Err, ErrProviderUnavailable) {
		t.Fatalf("expected provider error while loading, got %s %v", snap.Round, snap.Err)
	}

	h.mustRun(h.s.Skip())
	snap = h.s.Snapshot()
	if snap.Progress.Current != 2 || snap.Stats.Resolved != 0 {
		t.Fatalf("expected skip without item, got %+v %+v", snap.Progress, snap.Stats)
	}

	h.provider.err = nil
	h.mustRun(h.s.Retry())
	if got := h.s.Snapshot().Round; got != RoundAwaitingAnswer {
		t.Fatalf("expected retry to load question, got %s", got)
	}
}

func TestSkipWhileLoadingRequiresError(t *testing.T) {
	h := newHarness(t, defaultConfig())
	if _, err := h.s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := h.s.Skip()
	expectInvalid(t, err)
	_, err = h.s.Retry()
	expectInvalid(t, err)
}

func TestEvaluationFailureLeavesHistoryUntouched(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.evaluator.err = errors.New("openai: status 503")
	h.start()
	h.mustRun(h.s.SubmitTranscript("Hanoi"))

	snap := h.s.Snapshot()
	if snap.Round != RoundAwaitingEvaluation || !errors.Is(snap.Err, ErrEvaluationFailed) {
		t.Fatalf("expected evaluation error, got %s %v", snap.Round, snap.Err)
	}
	if snap.Stats.Resolved != 0 || snap.PendingAnswer != "Hanoi" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	h.evaluator.err = nil
	h.mustRun(h.s.Retry())
	snap = h.s.Snapshot()
	if snap.Round != RoundShowingResult || snap.Stats.Resolved != 1 {
		t.Fatalf("expected retry to record result, got %s %+v", snap.Round, snap.Stats)
	}
	if len(h.evaluator.answers) != 2 {
		t.Fatalf("expected two evaluator calls, got %d", len(h.evaluator.answers))
	}
}

func TestSkipFromAwaitingAnswerRecordsNothing(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.mustRun(h.s.Skip())

	snap := h.s.Snapshot()
	if snap.Progress.Current != 2 || snap.Stats.Resolved != 0 {
		t.Fatalf("unexpected state after skip: %+v %+v", snap.Progress, snap.Stats)
	}
	if snap.Round != RoundAwaitingAnswer {
		t.Fatalf("expected next question, got %s", snap.Round)
	}
}

func TestSkipAfterResultKeepsItem(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.start()
	h.mustRun(h.s.SubmitTranscript("Hanoi"))
	h.mustRun(h.s.Skip())
	if got := h.s.Snapshot().Stats.Resolved; got != 1 {
		t.Fatalf("expected recorded item kept, got %d", got)
	}
}

func TestEvaluatorScoreIsClamped(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.evaluator.eval = model.Evaluation{Score: 150, Feedback: "Great."}
	h.start()
	h.mustRun(h.s.SubmitTranscript("Hanoi"))
	if got := h.s.Snapshot().LastResult.Score; got != 100 {
		t.Fatalf("expected clamped score 100, got %d", got)
	}
}

func TestActionsRejectedOutOfState(t *testing.T) {
	h := newHarness(t, defaultConfig())
	_, err := h.s.SubmitTranscript("x")
	expectInvalid(t, err)
	_, err = h.s.Advance()
	expectInvalid(t, err)

	h.start()
	_, err = h.s.Start()
	expectInvalid(t, err)
	_, err = h.s.Advance()
	expectInvalid(t, err)
	_, err = h.s.StopCapture()
	expectInvalid(t, err)
}

func TestStartCaptureWithoutVoice(t *testing.T) {
	s, err := New(defaultConfig(), Deps{Questions: &fakeProvider{}, Evaluator: &fakeEvaluator{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.StartCapture(); !errors.Is(err, ErrVoiceUnavailable) {
		t.Fatalf("expected ErrVoiceUnavailable, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	deps := Deps{Questions: &fakeProvider{}, Evaluator: &fakeEvaluator{}}
	cases := []model.Config{
		{TotalQuestions: 0, AnswerSeconds: 10, CaptureSeconds: 5},
		{TotalQuestions: 10, AnswerSeconds: 0, CaptureSeconds: 5},
		{TotalQuestions: 10, AnswerSeconds: 10, CaptureSeconds: 0},
		{TotalQuestions: 10, AnswerSeconds: 4, CaptureSeconds: 5},
	}
	for _, cfg := range cases {
		if _, err := New(cfg, deps); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
	if _, err := New(defaultConfig(), Deps{Evaluator: &fakeEvaluator{}}); err == nil {
		t.Fatalf("expected error without provider")
	}
}
