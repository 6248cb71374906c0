// Package statsui provides the Bubble Tea history browser.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/stats"
	"github.com/phanngoc/olympia/internal/store"
)

const (
	tabOverview = iota
	tabSessions
	tabMissed
)

const (
	plotHeight     = 10
	defaultTop     = 20
	promptColWidth = 40
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history UI.
type Model struct {
	store *store.Store
	cfg   model.StatsConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*tableView

	// missedWindow limits the missed table to the last CurveWindow sessions.
	missedWindow bool

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableView struct {
	table  table.Model
	layout tableLayout
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
	colCount int
}

// NewModel constructs a history UI model.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	if cfg.MissedTop <= 0 {
		cfg.MissedTop = defaultTop
	}
	m := &Model{
		store: st,
		cfg:   cfg,
		tabs:  []string{"Overview", "Sessions", "Missed"},
		tables: map[int]*tableView{
			tabSessions: {table: newTable(sessionColumns())},
			tabMissed:   {table: newTable(missedColumns(promptColWidth))},
		},
		overview: viewport.New(0, 0),
	}
	m.initInputs()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "w":
			m.missedWindow = !m.missedWindow
			m.applyTables(true)
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if tv := m.activeTable(); tv != nil {
				tv.table.GotoTop()
			} else {
				m.overview.GotoTop()
			}
			return m, nil
		case "G", "end":
			if tv := m.activeTable(); tv != nil {
				tv.table.GotoBottom()
			} else {
				m.overview.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if tv := m.activeTable(); tv != nil {
				tv.table, cmd = tv.table.Update(msg)
				return m, cmd
			}
			m.overview, cmd = m.overview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) activeTable() *tableView {
	return m.tables[m.activeTab]
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
		newFilterInput("Top missed: "),
	}
	m.setInputsFromConfig()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(lipgloss.Height(activeNavStyle.Render("X")), 1)
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	if m.cfg.Since != nil {
		m.filterInputs[0].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[0].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[1].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[1].SetValue("")
	}
	m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.CurveWindow))
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.MissedTop))
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.applyTables(true)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = max(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	for tab, tv := range m.tables {
		if tab == m.activeTab {
			tv.table.Focus()
		} else {
			tv.table.Blur()
		}
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	scope := "all"
	if m.missedWindow {
		scope = "window"
	}
	summary := fmt.Sprintf("Settings: since=%s  last=%s  window=%d  top=%d  missed=%s", since, last, m.cfg.CurveWindow, m.cfg.MissedTop, scope)
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q"
	if m.activeTab == tabMissed {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Scope: w  Window: -/=  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	tv := m.activeTable()
	if tv == nil {
		return fitLines(m.overview.View(), m.width, height)
	}
	switch {
	case len(m.report.Sessions) == 0:
		return fitLines("No sessions found.", m.width, height)
	case m.activeTab == tabMissed && len(tv.table.Rows()) == 0:
		return fitLines("No missed questions.", m.width, height)
	default:
		return fitLines(tableMutedStyle.Render(tv.table.View()), m.width, height)
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.overview.SetContent("Failed to load history.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.applyTables(true)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		m.overview.SetContent("Failed to load history.")
		return
	}
	m.overview.SetContent(renderOverview(m.report.Sessions, m.cfg.CurveWindow, m.contentWidth()))
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m *Model) missedAggregates() []model.QuestionAggregate {
	if m.missedWindow {
		return m.report.QuestionsWindow
	}
	return m.report.QuestionsAll
}

func renderOverview(sessions []model.SessionAggregate, window, width int) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	summary := renderSummaryCards(sessions, width)
	scores, _ := stats.ScoreSeries(sessions)
	trend := cardTitleStyle.Render("Trend ") + stats.Sparkline(scores)
	curves := renderCurves(sessions, window, width)
	return strings.TrimRight(summary+"\n"+trend+"\n\n"+curves, "\n")
}

func renderSummaryCards(sessions []model.SessionAggregate, width int) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	s := stats.Summarize(sessions)
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d", s.Sessions)),
		metricCard("Avg score", fmt.Sprintf("%.1f", s.AverageScore)),
		metricCard("Best session", fmt.Sprintf("%d", s.BestScore)),
		metricCard("Answered", fmt.Sprintf("%d", s.Questions)),
		metricCard("Accuracy", fmt.Sprintf("%.1f%%", s.Accuracy)),
		metricCard("Time played", s.TimePlayed.Round(time.Second).String()),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderCurves(sessions []model.SessionAggregate, window, width int) string {
	var buf bytes.Buffer
	if err := stats.RenderCurvesWithSize(&buf, sessions, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 16},
		{Title: "Questions", Width: 9},
		{Title: "Answered", Width: 8},
		{Title: "Correct", Width: 7},
		{Title: "Accuracy", Width: 8},
		{Title: "Avg", Width: 4},
		{Title: "Duration", Width: 9},
	}
}

func missedColumns(promptWidth int) []table.Column {
	return []table.Column{
		{Title: "Question", Width: promptWidth},
		{Title: "Answer", Width: max(8, promptWidth/2)},
		{Title: "Tries", Width: 5},
		{Title: "Correct", Width: 7},
		{Title: "Avg", Width: 4},
		{Title: "Timeouts", Width: 8},
	}
}

// buildSessionRows lists sessions newest first.
func buildSessionRows(sessions []model.SessionAggregate) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		rows = append(rows, table.Row{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.TotalQuestions),
			fmt.Sprintf("%d", s.Resolved),
			fmt.Sprintf("%d", s.Correct),
			fmt.Sprintf("%.1f%%", stats.Accuracy(s.Correct, s.Resolved)),
			fmt.Sprintf("%d", s.AverageScore),
			(time.Duration(s.DurationMs) * time.Millisecond).Round(time.Second).String(),
		})
	}
	return rows
}

func buildMissedRows(aggs []model.QuestionAggregate, top, promptWidth int) []table.Row {
	_, cells := stats.MissedRows(stats.TopMissed(aggs, top), promptWidth)
	rows := make([]table.Row, len(cells))
	for i, cell := range cells {
		rows[i] = table.Row(cell)
	}
	return rows
}

// promptWidthFor sizes the question column so the missed table fills width.
func promptWidthFor(width int) int {
	fixed := 5 + 7 + 4 + 8
	return max(16, (width-fixed)*2/3)
}

func (m *Model) applyTables(force bool) {
	_, bodyHeight, _ := m.layoutHeights()
	width := m.contentWidth()
	promptWidth := promptWidthFor(width)

	sessions := m.tables[tabSessions]
	applyTable(sessions, sessionColumns(), buildSessionRows(m.report.Sessions), width, bodyHeight, force)

	missed := m.tables[tabMissed]
	applyTable(missed, missedColumns(promptWidth), buildMissedRows(m.missedAggregates(), m.cfg.MissedTop, promptWidth), width, bodyHeight, force)

	for tab, tv := range m.tables {
		if tab == m.activeTab {
			tv.table.Focus()
		} else {
			tv.table.Blur()
		}
	}
}

func applyTable(tv *tableView, cols []table.Column, rows []table.Row, width, height int, force bool) {
	viewportHeight := max(1, height-1)
	if !force &&
		tv.layout.width == width &&
		tv.layout.height == viewportHeight &&
		tv.layout.rowCount == len(rows) &&
		tv.layout.colCount == len(cols) {
		return
	}
	tv.table.SetRows(nil)
	tv.table.SetColumns(cols)
	tv.table.SetRows(rows)
	tv.layout.rowCount = len(rows)
	tv.layout.colCount = len(cols)
	tv.layout.width = 0
	tv.setSize(width, height)
}

func (tv *tableView) setSize(width, height int) {
	viewportHeight := max(1, height-1)
	if tv.layout.width == width && tv.layout.height == viewportHeight {
		return
	}
	tv.layout.width = width
	tv.layout.height = viewportHeight
	tv.table.SetWidth(width)
	tv.table.SetHeight(viewportHeight)
	viewportHeight = tv.adjustHeight(height)
	if tv.layout.height != viewportHeight {
		tv.layout.height = viewportHeight
		tv.table.SetHeight(viewportHeight)
	}
}

// adjustHeight corrects the table height so the rendered view fills bodyHeight lines.
func (tv *tableView) adjustHeight(bodyHeight int) int {
	target := max(1, bodyHeight)
	height := tv.table.Height()
	for range 2 {
		viewHeight := lipgloss.Height(tv.table.View())
		if viewHeight == target {
			return height
		}
		height = max(1, height+target-viewHeight)
		tv.table.SetHeight(height)
	}
	return height
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	sinceInput := strings.TrimSpace(m.filterInputs[0].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	last, err := parseCount(m.filterInputs[1].Value(), 0)
	if err != nil {
		return fmt.Errorf("invalid last value (use 0 or positive integer)")
	}
	windowInput := strings.TrimSpace(m.filterInputs[2].Value())
	window := 0
	if windowInput != "" {
		parsed, err := strconv.Atoi(windowInput)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}
	top, err := parseCount(m.filterInputs[3].Value(), defaultTop)
	if err != nil || top < 1 {
		return fmt.Errorf("invalid top missed (use integer >= 1)")
	}

	m.cfg = model.StatsConfig{
		Since:       since,
		Last:        last,
		CurveWindow: window,
		MissedTop:   top,
	}
	return nil
}

// parseCount parses a non-negative integer, returning fallback for blank input.
func parseCount(input string, fallback int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	if n%5 == 0 {
		return n + 5
	}
	return ((n / 5) + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
