// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
	statsPkg "github.com/phanngoc/olympia/internal/stats"
)

// SessionStore persists finished sessions and serves the footer totals.
type SessionStore interface {
	InsertSession(ctx context.Context, rec model.SessionRecord, items []model.QuizItem) (int64, error)
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
}

type keyMap struct {
	Submit  key.Binding
	Voice   key.Binding
	Skip    key.Binding
	Next    key.Binding
	Retry   key.Binding
	Restart key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Voice:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "speak")),
		Skip:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "skip")),
		Next:    key.NewBinding(key.WithKeys("enter", "n"), key.WithHelp("enter", "next")),
		Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start over")),
		Quit:    key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Voice, k.Next, k.Retry, k.Skip, k.Restart, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model implements the Bubble Tea quiz UI around a quiz.Session.
type Model struct {
	session *quiz.Session
	store   SessionStore
	log     *slog.Logger

	keys    keyMap
	help    help.Model
	input   textinput.Model
	spinner spinner.Model
	bar     progress.Model
	results table.Model

	snap      quiz.Snapshot
	roundKey  int
	saved     bool
	notice    string
	saveError string

	width  int
	height int

	hasLast     bool
	lastScore   int
	allScore    float64
	allAccuracy float64
	allSessions []model.SessionAggregate
}

// NewModel constructs the quiz UI. st may be nil, in which case nothing is persisted.
func NewModel(session *quiz.Session, st SessionStore, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	input := textinput.New()
	input.Placeholder = "Type your answer"
	input.Prompt = "› "
	input.CharLimit = 200

	m := &Model{
		session: session,
		store:   st,
		log:     logger,
		keys:    newKeyMap(),
		help:    help.New(),
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		bar:     progress.New(progress.WithoutPercentage(), progress.WithSolidFill(timerOKColor)),
	}
	m.snap = session.Snapshot()
	m.loadFooterStats()
	m.syncKeys()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		cmd := m.session.Update(msg)
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		return m, tea.Batch(cmd, inputCmd, m.sync())
	}
}

func (m *Model) start() tea.Cmd {
	cmd, err := m.session.Start()
	if err != nil {
		m.log.Debug("start ignored", "err", err)
	}
	return tea.Batch(cmd, m.sync())
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}
	snap := m.snap
	if snap.State == quiz.SessionComplete {
		switch {
		case key.Matches(msg, m.keys.Restart):
			m.session.Reset()
			m.saved = false
			m.saveError = ""
			return m.start()
		case msg.String() == "q":
			return tea.Quit
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return cmd
	}
	if snap.State != quiz.SessionActive {
		return nil
	}

	if snap.Round == quiz.RoundAwaitingAnswer {
		switch {
		case key.Matches(msg, m.keys.Submit):
			return m.act(m.session.SubmitTranscript(m.input.Value()))
		case key.Matches(msg, m.keys.Voice):
			if snap.Capture == quiz.CaptureRecording {
				return m.act(m.session.StopCapture())
			}
			return m.act(m.session.StartCapture())
		case key.Matches(msg, m.keys.Skip):
			return m.act(m.session.Skip())
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch {
	case msg.String() == "q":
		return tea.Quit
	case key.Matches(msg, m.keys.Next) && snap.Round == quiz.RoundShowingResult:
		return m.act(m.session.Advance())
	case key.Matches(msg, m.keys.Retry):
		return m.act(m.session.Retry())
	case msg.String() == "s" || key.Matches(msg, m.keys.Skip):
		return m.act(m.session.Skip())
	}
	return nil
}

// act applies the outcome of a session action and resyncs the view state.
func (m *Model) act(cmd tea.Cmd, err error) tea.Cmd {
	m.notice = ""
	switch {
	case errors.Is(err, quiz.ErrVoiceUnavailable):
		m.notice = "Voice input is not configured; type your answer."
	case err != nil:
		m.log.Debug("action ignored", "err", err)
	}
	return tea.Batch(cmd, m.sync())
}

// sync refreshes the cached snapshot and reacts to round changes.
func (m *Model) sync() tea.Cmd {
	m.snap = m.session.Snapshot()
	var cmd tea.Cmd
	roundKey := m.snap.Progress.Current*10 + int(m.snap.Round)
	if roundKey != m.roundKey {
		m.roundKey = roundKey
		if m.snap.Round == quiz.RoundAwaitingAnswer && m.snap.State == quiz.SessionActive {
			m.input.Reset()
			cmd = m.input.Focus()
		} else {
			m.input.Blur()
		}
	}
	if m.snap.State == quiz.SessionComplete && !m.saved {
		m.saved = true
		m.finishSession()
		m.results = buildResultsTable(m.snap.History, m.width, m.resultsHeight())
	}
	m.syncKeys()
	return cmd
}

func (m *Model) syncKeys() {
	snap := m.snap
	active := snap.State == quiz.SessionActive
	answering := active && snap.Round == quiz.RoundAwaitingAnswer
	m.keys.Submit.SetEnabled(answering)
	m.keys.Voice.SetEnabled(answering)
	if snap.Capture == quiz.CaptureRecording {
		m.keys.Voice.SetHelp("tab", "stop recording")
	} else {
		m.keys.Voice.SetHelp("tab", "speak")
	}
	m.keys.Next.SetEnabled(active && snap.Round == quiz.RoundShowingResult)
	m.keys.Retry.SetEnabled(active && snap.Err != nil && snap.Round != quiz.RoundAwaitingAnswer)
	m.keys.Skip.SetEnabled(active && (answering || snap.Round == quiz.RoundShowingResult || snap.Err != nil))
	m.keys.Restart.SetEnabled(snap.State == quiz.SessionComplete)
}

// finishSession persists the completed session and refreshes footer totals.
func (m *Model) finishSession() {
	snap := m.snap
	if snap.Stats.Resolved == 0 {
		return
	}
	rec := model.SessionRecord{
		StartedAt:      snap.StartedAt,
		EndedAt:        snap.EndedAt,
		TotalQuestions: snap.Progress.Total,
		Resolved:       snap.Stats.Resolved,
		Correct:        snap.Stats.Correct,
		AverageScore:   snap.Stats.AverageScore,
		DurationMs:     snap.EndedAt.Sub(snap.StartedAt).Milliseconds(),
	}
	if m.store != nil {
		if _, err := m.store.InsertSession(context.Background(), rec, snap.History); err != nil {
			m.saveError = fmt.Sprintf("failed to save session: %v", err)
			m.log.Warn("save session failed", "err", err)
		}
	}
	m.lastScore = rec.AverageScore
	m.hasLast = true
	m.allSessions = append(m.allSessions, model.SessionAggregate{
		EndedAt:        rec.EndedAt,
		TotalQuestions: rec.TotalQuestions,
		Resolved:       rec.Resolved,
		Correct:        rec.Correct,
		AverageScore:   rec.AverageScore,
		DurationMs:     rec.DurationMs,
	})
	m.recomputeAllTime()
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	sessions, err := m.store.ListSessions(context.Background(), model.StatsConfig{})
	if err != nil {
		m.log.Warn("load session stats failed", "err", err)
		return
	}
	if len(sessions) == 0 {
		return
	}
	m.lastScore = sessions[len(sessions)-1].AverageScore
	m.hasLast = true
	m.allSessions = sessions
	m.recomputeAllTime()
}

func (m *Model) recomputeAllTime() {
	summary := statsPkg.Summarize(m.allSessions)
	m.allScore = summary.AverageScore
	m.allAccuracy = summary.Accuracy
}

func (m *Model) resize() {
	m.input.Width = max(10, m.contentWidth()-4)
	m.bar.Width = max(10, m.contentWidth()-8)
	if m.snap.State == quiz.SessionComplete {
		m.results = buildResultsTable(m.snap.History, m.width, m.resultsHeight())
	}
}
