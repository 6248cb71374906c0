package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

type stubProvider struct {
	err error
}

func (p stubProvider) FetchRandomQuestion(context.Context) (model.Question, error) {
	if p.err != nil {
		return model.Question{}, p.err
	}
	return model.Question{ID: 7, Prompt: "Capital of Vietnam?", ExpectedAnswer: "Hanoi"}, nil
}

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(_ context.Context, _ int64, answer string) (model.Evaluation, error) {
	if answer == "Hanoi" {
		return model.Evaluation{Score: 85, Feedback: "Correct."}, nil
	}
	return model.Evaluation{Score: 10, Feedback: "Not quite."}, nil
}

type stubStore struct {
	records  []model.SessionRecord
	items    [][]model.QuizItem
	sessions []model.SessionAggregate
}

func (s *stubStore) InsertSession(_ context.Context, rec model.SessionRecord, items []model.QuizItem) (int64, error) {
	s.records = append(s.records, rec)
	s.items = append(s.items, items)
	return int64(len(s.records)), nil
}

func (s *stubStore) ListSessions(context.Context, model.StatsConfig) ([]model.SessionAggregate, error) {
	return s.sessions, nil
}

func noTick(time.Duration, func(time.Time) tea.Msg) tea.Cmd {
	return nil
}

func instantTick(_ time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return fn(time.Now())
	}
}

func newTestModel(t *testing.T, provider quiz.QuestionProvider, tick quiz.TickFunc, st SessionStore) *Model {
	t.Helper()
	session, err := quiz.New(
		model.Config{TotalQuestions: 1, AnswerSeconds: 10, CaptureSeconds: 5},
		quiz.Deps{Questions: provider, Evaluator: stubEvaluator{}},
		quiz.WithTick(tick),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return NewModel(session, st, nil)
}

// drive runs cmd and feeds every resulting message back into m. Commands that
// block, like cursor blinking, are abandoned after a short wait.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runCmd(next)
		if !ok {
			continue
		}
		switch msg := msg.(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func runCmd(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() {
		ch <- cmd()
	}()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(50 * time.Millisecond):
		return nil, false
	}
}

func press(t *testing.T, m *Model, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(msg)
	drive(t, m, cmd)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTypedAnswerFlow(t *testing.T) {
	st := &stubStore{}
	m := newTestModel(t, stubProvider{}, noTick, st)
	drive(t, m, m.start())

	if m.snap.Round != quiz.RoundAwaitingAnswer {
		t.Fatalf("expected to await an answer, got %s", m.snap.Round)
	}
	if !strings.Contains(m.View(), "Capital of Vietnam?") {
		t.Fatalf("expected prompt in view:\n%s", m.View())
	}

	press(t, m, runes("Hanoi"))
	if m.input.Value() != "Hanoi" {
		t.Fatalf("expected typed answer, got %q", m.input.Value())
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.snap.Round != quiz.RoundShowingResult {
		t.Fatalf("expected result, got %s", m.snap.Round)
	}
	view := m.View()
	if !strings.Contains(view, "85/100 · Correct") || !strings.Contains(view, "Expected:    Hanoi") {
		t.Fatalf("unexpected result view:\n%s", view)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.snap.State != quiz.SessionComplete {
		t.Fatalf("expected complete session, got %s", m.snap.State)
	}
	if len(st.records) != 1 {
		t.Fatalf("expected one saved session, got %d", len(st.records))
	}
	rec := st.records[0]
	if rec.Resolved != 1 || rec.Correct != 1 || rec.AverageScore != 85 || rec.TotalQuestions != 1 {
		t.Fatalf("unexpected saved record: %+v", rec)
	}
	if len(st.items[0]) != 1 || st.items[0][0].QuestionID != 7 {
		t.Fatalf("unexpected saved items: %+v", st.items[0])
	}
	if !strings.Contains(m.View(), "Quiz complete") {
		t.Fatalf("expected results view:\n%s", m.View())
	}

	press(t, m, runes("r"))
	if m.snap.State != quiz.SessionActive || m.snap.Progress.Current != 1 || len(m.snap.History) != 0 {
		t.Fatalf("expected fresh session after start over, got %+v", m.snap)
	}
	if m.snap.Round != quiz.RoundAwaitingAnswer || m.input.Value() != "" {
		t.Fatalf("expected empty input for the new round")
	}
}

func TestTimeoutShowsNoAnswer(t *testing.T) {
	m := newTestModel(t, stubProvider{}, instantTick, nil)
	drive(t, m, m.start())

	if m.snap.Round != quiz.RoundShowingResult || m.snap.LastResult == nil {
		t.Fatalf("expected timed out round, got %s", m.snap.Round)
	}
	view := m.View()
	if !strings.Contains(view, "Time is up") || !strings.Contains(view, quiz.NoAnswerMarker) {
		t.Fatalf("unexpected timeout view:\n%s", view)
	}
}

func TestVoiceUnavailableNotice(t *testing.T) {
	m := newTestModel(t, stubProvider{}, noTick, nil)
	drive(t, m, m.start())
	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !strings.Contains(m.View(), "Voice input is not configured") {
		t.Fatalf("expected voice notice:\n%s", m.View())
	}
	if m.snap.Capture != quiz.CaptureIdle {
		t.Fatalf("capture should stay idle, got %s", m.snap.Capture)
	}
}

func TestProviderErrorSkip(t *testing.T) {
	st := &stubStore{}
	m := newTestModel(t, stubProvider{err: errors.New("backend down")}, noTick, st)
	drive(t, m, m.start())

	if m.snap.Err == nil || !strings.Contains(m.View(), "Press r to retry or s to skip") {
		t.Fatalf("expected provider error in view:\n%s", m.View())
	}
	press(t, m, runes("r"))
	if m.snap.Err == nil || m.snap.Round != quiz.RoundLoading {
		t.Fatalf("expected retry to fail again, got %+v", m.snap)
	}
	press(t, m, runes("s"))
	if m.snap.State != quiz.SessionComplete {
		t.Fatalf("expected skip to finish the single-question session, got %s", m.snap.State)
	}
	if len(st.records) != 0 {
		t.Fatalf("expected nothing saved for an empty session, got %+v", st.records)
	}
	if !strings.Contains(m.View(), "No questions were answered.") {
		t.Fatalf("unexpected empty results view:\n%s", m.View())
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{
		snap: quiz.Snapshot{
			Progress: quiz.Progress{Current: 3, Total: 10},
			Stats:    quiz.AggregateStats{Resolved: 2, Correct: 2, AverageScore: 71},
		},
		hasLast:     true,
		lastScore:   68,
		allSessions: []model.SessionAggregate{{SessionID: 1}},
		allScore:    72.5,
		allAccuracy: 64.3,
	}
	out := m.renderFooter()
	if !containsAll(out, []string{"Question 3/10", "Correct 2 · Avg 71", "Last 68", "All-time 72.5 · 64.3%"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestFooterLoadsStoredSessions(t *testing.T) {
	st := &stubStore{sessions: []model.SessionAggregate{
		{SessionID: 1, Resolved: 10, Correct: 5, AverageScore: 60},
		{SessionID: 2, Resolved: 10, Correct: 9, AverageScore: 90},
	}}
	m := newTestModel(t, stubProvider{}, noTick, st)
	if !m.hasLast || m.lastScore != 90 || m.allScore != 75 || m.allAccuracy != 70 {
		t.Fatalf("unexpected footer totals: last=%d all=%.1f acc=%.1f", m.lastScore, m.allScore, m.allAccuracy)
	}
}

func TestTimerColor(t *testing.T) {
	cases := []struct {
		remaining int
		want      string
	}{
		{10, timerOKColor},
		{6, timerOKColor},
		{5, timerWarnColor},
		{3, timerWarnColor},
		{2, timerLowColor},
		{0, timerLowColor},
	}
	for _, tc := range cases {
		if got := timerColor(tc.remaining, 10); got != tc.want {
			t.Fatalf("remaining %d: expected %s, got %s", tc.remaining, tc.want, got)
		}
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
