// Package stats computes score metrics over stored sessions and renders reports.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/phanngoc/olympia/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a list of sessions.
type Summary struct {
	Sessions     int
	Questions    int
	Correct      int
	AverageScore float64
	BestScore    int
	Accuracy     float64
	TimePlayed   time.Duration
}

// Accuracy returns correct/resolved as a percentage.
func Accuracy(correct, resolved int) float64 {
	if resolved <= 0 {
		return 0
	}
	return float64(correct) / float64(resolved) * 100
}

// Summarize totals sessions. The average score is weighted by resolved rounds.
func Summarize(sessions []model.SessionAggregate) Summary {
	var s Summary
	var weighted int
	for _, agg := range sessions {
		s.Sessions++
		s.Questions += agg.Resolved
		s.Correct += agg.Correct
		weighted += agg.AverageScore * agg.Resolved
		s.BestScore = max(s.BestScore, agg.AverageScore)
		s.TimePlayed += time.Duration(agg.DurationMs) * time.Millisecond
	}
	if s.Questions > 0 {
		s.AverageScore = float64(weighted) / float64(s.Questions)
	}
	s.Accuracy = Accuracy(s.Correct, s.Questions)
	return s
}

// ScoreSeries returns per-session average score and accuracy.
func ScoreSeries(sessions []model.SessionAggregate) (scores, accuracy []float64) {
	scores = make([]float64, len(sessions))
	accuracy = make([]float64, len(sessions))
	for i, s := range sessions {
		scores[i] = float64(s.AverageScore)
		accuracy[i] = Accuracy(s.Correct, s.Resolved)
	}
	return scores, accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints overall totals for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	s := Summarize(sessions)
	scores, _ := ScoreSeries(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", s.Sessions),
		fmt.Sprintf("Questions answered: %d", s.Questions),
		fmt.Sprintf("Correct: %d (%.1f%%)", s.Correct, s.Accuracy),
		fmt.Sprintf("Avg score: %.1f", s.AverageScore),
		fmt.Sprintf("Best session: %d", s.BestScore),
		fmt.Sprintf("Time played: %s", s.TimePlayed.Round(time.Second)),
		fmt.Sprintf("Trend: %s", Sparkline(scores)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints score and accuracy curves.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, 10, false)
}

// RenderCurvesWithSize prints score and accuracy curves sized to totalWidth.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, useColor bool) error {
	if len(sessions) == 0 {
		return nil
	}
	scores, accuracy := ScoreSeries(sessions)
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Score Curves", []Series{
		{Name: "Avg score", Values: MovingAverage(scores, window)},
		{Name: "Accuracy %", Values: MovingAverage(accuracy, window)},
	}, width, height, useColor)
}

// RenderMissedTable prints the most missed questions.
func RenderMissedTable(w io.Writer, aggs []model.QuestionAggregate, top int) error {
	missed := TopMissed(aggs, top)
	if len(missed) == 0 {
		_, err := fmt.Fprintln(w, "No missed questions.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Most Missed Questions"); err != nil {
		return err
	}
	headers, rows := MissedRows(missed, 48)
	lines := formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true, 5: true})
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// MissedRows formats question aggregates as table cells, truncating prompts to promptWidth.
func MissedRows(aggs []model.QuestionAggregate, promptWidth int) ([]string, [][]string) {
	headers := []string{"Question", "Answer", "Tries", "Correct", "Avg", "Timeouts"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		avg := 0.0
		if agg.Attempts > 0 {
			avg = float64(agg.ScoreSum) / float64(agg.Attempts)
		}
		rows = append(rows, []string{
			truncate(agg.Prompt, promptWidth),
			truncate(agg.ExpectedAnswer, promptWidth/2),
			fmt.Sprintf("%d", agg.Attempts),
			fmt.Sprintf("%d", agg.Correct),
			fmt.Sprintf("%.0f", avg),
			fmt.Sprintf("%d", agg.Timeouts),
		})
	}
	return headers, rows
}
