package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/phanngoc/olympia/internal/model"
)

type pendingTick struct {
	d  time.Duration
	fn func(time.Time) tea.Msg
}

// fakeTicker records scheduled ticks so tests decide when time passes.
type fakeTicker struct {
	pending []pendingTick
}

func (f *fakeTicker) tick(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	f.pending = append(f.pending, pendingTick{d: d, fn: fn})
	return func() tea.Msg { return nil }
}

// take removes and returns the messages of every tick scheduled with d.
func (f *fakeTicker) take(d time.Duration) []tea.Msg {
	var out []tea.Msg
	kept := f.pending[:0]
	for _, p := range f.pending {
		if p.d == d {
			out = append(out, p.fn(time.Time{}))
			continue
		}
		kept = append(kept, p)
	}
	f.pending = kept
	return out
}

type fakeProvider struct {
	questions []model.Question
	err       error
	calls     int
}

func (f *fakeProvider) FetchRandomQuestion(context.Context) (model.Question, error) {
	f.calls++
	if f.err != nil {
		return model.Question{}, f.err
	}
	if len(f.questions) == 0 {
		return model.Question{ID: int64(f.calls), Prompt: "Capital of Vietnam?", ExpectedAnswer: "Hanoi"}, nil
	}
	return f.questions[(f.calls-1)%len(f.questions)], nil
}

type fakeEvaluator struct {
	eval    model.Evaluation
	err     error
	answers []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ int64, answer string) (model.Evaluation, error) {
	f.answers = append(f.answers, answer)
	if f.err != nil {
		return model.Evaluation{}, f.err
	}
	return f.eval, nil
}

type fakeRecorder struct {
	limits []time.Duration
}

func (f *fakeRecorder) Record(_ context.Context, limit time.Duration) ([]byte, error) {
	f.limits = append(f.limits, limit)
	return []byte("audio"), nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fakePlayer struct {
	cues []model.Cue
}

func (f *fakePlayer) Play(cue model.Cue) {
	f.cues = append(f.cues, cue)
}

func (f *fakePlayer) last() model.Cue {
	if len(f.cues) == 0 {
		return ""
	}
	return f.cues[len(f.cues)-1]
}

// collect runs cmd and any batched commands, returning the messages without delivering them.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

type harness struct {
	t           *testing.T
	s           *Session
	ticker      *fakeTicker
	provider    *fakeProvider
	evaluator   *fakeEvaluator
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	player      *fakePlayer
}

func newHarness(t *testing.T, cfg model.Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:           t,
		ticker:      &fakeTicker{},
		provider:    &fakeProvider{},
		evaluator:   &fakeEvaluator{eval: model.Evaluation{Score: 85, Feedback: "Correct."}},
		recorder:    &fakeRecorder{},
		transcriber: &fakeTranscriber{text: "Hanoi"},
		player:      &fakePlayer{},
	}
	s, err := New(cfg, Deps{
		Questions:   h.provider,
		Evaluator:   h.evaluator,
		Transcriber: h.transcriber,
		Recorder:    h.recorder,
		Cues:        h.player,
	}, append([]Option{WithTick(h.ticker.tick)}, opts...)...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	h.s = s
	return h
}

func defaultConfig() model.Config {
	return model.Config{TotalQuestions: 10, AnswerSeconds: 10, CaptureSeconds: 5}
}

// run delivers every message cmd produces, following up on returned commands.
func (h *harness) run(cmd tea.Cmd) {
	for _, msg := range collect(cmd) {
		h.deliver(msg)
	}
}

func (h *harness) deliver(msg tea.Msg) {
	h.run(h.s.Update(msg))
}

// elapse lets n seconds of answer time pass.
func (h *harness) elapse(n int) {
	for i := 0; i < n; i++ {
		for _, msg := range h.ticker.take(time.Second) {
			h.deliver(msg)
		}
	}
}

func (h *harness) mustRun(cmd tea.Cmd, err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
	h.run(cmd)
}

func (h *harness) start() {
	h.t.Helper()
	h.mustRun(h.s.Start())
	if got := h.s.Snapshot().Round; got != RoundAwaitingAnswer {
		h.t.Fatalf("expected awaiting answer after start, got %s", got)
	}
}

func expectInvalid(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
