package stats

import (
	"sort"

	"github.com/phanngoc/olympia/internal/model"
)

// TopMissed returns up to n questions with at least one miss, worst first:
// lowest correct rate, then most attempts, then prompt order.
func TopMissed(aggs []model.QuestionAggregate, n int) []model.QuestionAggregate {
	var missed []model.QuestionAggregate
	for _, agg := range aggs {
		if agg.Attempts > agg.Correct {
			missed = append(missed, agg)
		}
	}
	sort.Slice(missed, func(i, j int) bool {
		ri, rj := correctRate(missed[i]), correctRate(missed[j])
		if ri != rj {
			return ri < rj
		}
		if missed[i].Attempts != missed[j].Attempts {
			return missed[i].Attempts > missed[j].Attempts
		}
		return missed[i].Prompt < missed[j].Prompt
	})
	if n > 0 && len(missed) > n {
		missed = missed[:n]
	}
	return missed
}

func correctRate(agg model.QuestionAggregate) float64 {
	if agg.Attempts == 0 {
		return 1
	}
	return float64(agg.Correct) / float64(agg.Attempts)
}
