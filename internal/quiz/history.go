package quiz

import "github.com/phanngoc/olympia/internal/model"

// PassingScore is the lowest score counted as a correct answer.
const PassingScore = 70

// AggregateStats summarizes the recorded rounds.
type AggregateStats struct {
	Resolved     int
	Correct      int
	AverageScore int
}

// History is the append-only log of resolved rounds.
type History struct {
	items   []model.QuizItem
	correct int
	sum     int
}

// Record appends item and updates the running totals.
func (h *History) Record(item model.QuizItem) {
	invariant(item.Score >= 0 && item.Score <= 100, "score %d out of range", item.Score)
	h.items = append(h.items, item)
	h.sum += item.Score
	if item.Score >= PassingScore {
		h.correct++
	}
}

// Items returns a copy of the recorded rounds in insertion order.
func (h *History) Items() []model.QuizItem {
	out := make([]model.QuizItem, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the number of recorded rounds.
func (h *History) Len() int {
	return len(h.items)
}

// Stats returns the aggregate over all recorded rounds.
func (h *History) Stats() AggregateStats {
	return AggregateStats{
		Resolved:     len(h.items),
		Correct:      h.correct,
		AverageScore: roundedMean(h.sum, len(h.items)),
	}
}

// Reset clears all recorded rounds.
func (h *History) Reset() {
	h.items = nil
	h.correct = 0
	h.sum = 0
}

// roundedMean rounds sum/count half up; scores are never negative.
func roundedMean(sum, count int) int {
	if count == 0 {
		return 0
	}
	return (2*sum + count) / (2 * count)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
