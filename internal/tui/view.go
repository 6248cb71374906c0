package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

const (
	timerOKColor   = "#52C41A"
	timerWarnColor = "#FAAD14"
	timerLowColor  = "#FF4D4F"

	minContentWidth = 40
	maxContentWidth = 100
)

var (
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	promptStyle  = textStyle.Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	correctStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(timerOKColor)).Bold(true)
	wrongStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(timerLowColor)).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(timerLowColor))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle    = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.snap.State {
	case quiz.SessionActive:
		body = m.viewRound()
	case quiz.SessionComplete:
		body = m.viewResults()
	default:
		body = m.spinner.View() + " Starting…"
	}
	if helpLine := m.help.View(m.keys); helpLine != "" {
		body += "\n\n" + helpLine
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	content := lipgloss.NewStyle().Width(m.contentWidth()).Render(body)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	top := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return top + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 60
	}
	return min(max(int(float64(m.width)*0.70), minContentWidth), maxContentWidth, m.width)
}

func (m *Model) viewRound() string {
	snap := m.snap
	width := m.contentWidth()
	var b strings.Builder

	b.WriteString(mutedStyle.Render(fmt.Sprintf("Question %d of %d", snap.Progress.Current, snap.Progress.Total)))
	b.WriteString("\n\n")
	if snap.Question != nil {
		b.WriteString(promptStyle.Render(strings.Join(wrapText(snap.Question.Prompt, width), "\n")))
		b.WriteString("\n\n")
	}

	switch snap.Round {
	case quiz.RoundLoading:
		if snap.Err == nil {
			b.WriteString(m.spinner.View() + " Loading question…")
		}
	case quiz.RoundAwaitingAnswer:
		b.WriteString(m.renderTimer(snap.Timer))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		if status := captureStatus(snap.Capture); status != "" {
			b.WriteString("\n" + accentStyle.Render(status))
		}
	case quiz.RoundAwaitingEvaluation:
		b.WriteString(mutedStyle.Render("Your answer: ") + textStyle.Render(snap.PendingAnswer))
		if snap.Err == nil {
			b.WriteString("\n\n" + m.spinner.View() + " Evaluating…")
		}
	case quiz.RoundShowingResult:
		if snap.LastResult != nil {
			b.WriteString(renderResult(*snap.LastResult, width))
		}
	}
	if snap.Err != nil {
		b.WriteString("\n\n" + errorStyle.Render(errorText(snap.Err, snap.Round)))
	}
	if m.notice != "" {
		b.WriteString("\n\n" + mutedStyle.Render(m.notice))
	}
	return b.String()
}

func (m *Model) renderTimer(t quiz.TimerState) string {
	fraction := 0.0
	if t.Duration > 0 {
		fraction = float64(t.Remaining) / float64(t.Duration)
	}
	m.bar.FullColor = timerColor(t.Remaining, t.Duration)
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(m.bar.FullColor)).Render(fmt.Sprintf("%3ds", t.Remaining))
	return m.bar.ViewAs(fraction) + " " + label
}

// timerColor shades the countdown green, then yellow below half, then red below a fifth.
func timerColor(remaining, duration int) string {
	if duration <= 0 {
		return timerLowColor
	}
	ratio := float64(remaining) / float64(duration)
	switch {
	case ratio > 0.5:
		return timerOKColor
	case ratio > 0.2:
		return timerWarnColor
	default:
		return timerLowColor
	}
}

func captureStatus(state quiz.CaptureState) string {
	switch state {
	case quiz.CaptureRecording:
		return "● Recording… press tab to stop"
	case quiz.CaptureTranscribing:
		return "Transcribing…"
	default:
		return ""
	}
}

func errorText(err error, round quiz.RoundState) string {
	switch round {
	case quiz.RoundAwaitingAnswer:
		return fmt.Sprintf("%v. Press tab to try again or type your answer.", capitalize(err.Error()))
	default:
		return fmt.Sprintf("%v. Press r to retry or s to skip.", capitalize(err.Error()))
	}
}

func renderResult(item model.QuizItem, width int) string {
	verdict := wrongStyle.Render(fmt.Sprintf("%d/100 · Incorrect", item.Score))
	switch {
	case item.Resolution == model.ResolutionTimeout:
		verdict = wrongStyle.Render("0/100 · Time is up")
	case item.Score >= quiz.PassingScore:
		verdict = correctStyle.Render(fmt.Sprintf("%d/100 · Correct", item.Score))
	}
	lines := []string{
		verdict,
		"",
		mutedStyle.Render("Your answer: ") + textStyle.Render(item.SubmittedAnswer),
		mutedStyle.Render("Expected:    ") + textStyle.Render(item.ExpectedAnswer),
	}
	if item.Feedback != "" {
		lines = append(lines, "", textStyle.Render(strings.Join(wrapText(item.Feedback, width), "\n")))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewResults() string {
	snap := m.snap
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCard("Questions", fmt.Sprintf("%d", snap.Progress.Total)),
		renderCard("Answered", fmt.Sprintf("%d", snap.Stats.Resolved)),
		renderCard("Correct", fmt.Sprintf("%d", snap.Stats.Correct)),
		renderCard("Average", fmt.Sprintf("%d", snap.Stats.AverageScore)),
	)
	parts := []string{promptStyle.Render("Quiz complete"), "", cards}
	if len(snap.History) > 0 {
		parts = append(parts, "", m.results.View())
	} else {
		parts = append(parts, "", mutedStyle.Render("No questions were answered."))
	}
	if m.saveError != "" {
		parts = append(parts, "", errorStyle.Render(m.saveError))
	}
	return strings.Join(parts, "\n")
}

func renderCard(title, value string) string {
	return cardStyle.Render(mutedStyle.Render(title) + "\n" + promptStyle.Render(value))
}

func (m *Model) resultsHeight() int {
	if m.height <= 0 {
		return min(len(m.snap.History)+1, 11)
	}
	return max(3, m.height-16)
}

func buildResultsTable(items []model.QuizItem, width, height int) table.Model {
	if width <= 0 {
		width = 80
	}
	textWidth := max(8, (min(width, maxContentWidth)-3-6-8)/3)
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Question", Width: textWidth},
		{Title: "Your answer", Width: textWidth},
		{Title: "Expected", Width: textWidth},
		{Title: "Score", Width: 6},
	}
	rows := make([]table.Row, 0, len(items))
	for i, item := range items {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			truncate(item.Prompt, textWidth),
			truncate(item.SubmittedAnswer, textWidth),
			truncate(item.ExpectedAnswer, textWidth),
			fmt.Sprintf("%d", item.Score),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(max(1, height)),
		table.WithFocused(true),
	)
	t.SetStyles(resultsTableStyles())
	return t
}

func resultsTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(false)
	return styles
}

func (m *Model) renderFooter() string {
	snap := m.snap
	if snap.Progress.Total == 0 {
		return ""
	}
	current := min(snap.Progress.Current, snap.Progress.Total)
	segments := []string{
		fmt.Sprintf("Question %d/%d", current, snap.Progress.Total),
		fmt.Sprintf("Correct %d · Avg %d", snap.Stats.Correct, snap.Stats.AverageScore),
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d", m.lastScore))
	}
	if len(m.allSessions) > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f · %.1f%%", m.allScore, m.allAccuracy))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
