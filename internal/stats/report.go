package stats

import (
	"context"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/store"
)

// Report contains precomputed data for history rendering.
type Report struct {
	Sessions         []model.SessionAggregate
	WindowSessionIDs []int64
	QuestionsAll     []model.QuestionAggregate
	QuestionsWindow  []model.QuestionAggregate
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}

	windowIDs := lastSessionIDs(sessions, cfg.CurveWindow)
	all, err := st.ListQuestionAggregates(ctx, sessionIDs(sessions))
	if err != nil {
		return Report{}, err
	}
	window, err := st.ListQuestionAggregates(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Sessions:         sessions,
		WindowSessionIDs: windowIDs,
		QuestionsAll:     all,
		QuestionsWindow:  window,
	}, nil
}

func sessionIDs(sessions []model.SessionAggregate) []int64 {
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}

func lastSessionIDs(sessions []model.SessionAggregate, window int) []int64 {
	if window <= 0 || len(sessions) <= window {
		return sessionIDs(sessions)
	}
	return sessionIDs(sessions[len(sessions)-window:])
}
