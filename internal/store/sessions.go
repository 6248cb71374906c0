package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/phanngoc/olympia/internal/model"
)

// InsertSession stores a completed session and its recorded rounds.
func (s *Store) InsertSession(ctx context.Context, rec model.SessionRecord, items []model.QuizItem) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, total_questions, resolved, correct, average_score, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.TotalQuestions,
		rec.Resolved,
		rec.Correct,
		rec.AverageScore,
		rec.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(items) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO session_items (session_id, position, question_id, prompt, submitted_answer, expected_answer, score, feedback, resolution)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, item := range items {
			if _, err = stmt.ExecContext(ctx, id, i+1, item.QuestionID, item.Prompt, item.SubmittedAnswer,
				item.ExpectedAnswer, item.Score, item.Feedback, string(item.Resolution)); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListSessions returns session aggregates filtered by cfg, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, ended_at, total_questions, resolved, correct, average_score, duration_ms
		FROM (
			SELECT * FROM sessions
			WHERE %s
			ORDER BY ended_at DESC
			LIMIT ?
		)
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.TotalQuestions, &agg.Resolved,
			&agg.Correct, &agg.AverageScore, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessionItems returns the recorded rounds of one session in order.
func (s *Store) ListSessionItems(ctx context.Context, sessionID int64) ([]model.QuizItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, prompt, submitted_answer, expected_answer, score, feedback, resolution
		 FROM session_items
		 WHERE session_id = ?
		 ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var items []model.QuizItem
	for rows.Next() {
		var item model.QuizItem
		var resolution string
		if err := rows.Scan(&item.QuestionID, &item.Prompt, &item.SubmittedAnswer, &item.ExpectedAnswer,
			&item.Score, &item.Feedback, &resolution); err != nil {
			return nil, err
		}
		item.Resolution = model.Resolution(resolution)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListQuestionAggregates aggregates per-question outcomes across sessions.
func (s *Store) ListQuestionAggregates(ctx context.Context, sessionIDs []int64) ([]model.QuestionAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, 0, len(sessionIDs)+2)
	args = append(args, passingScore, string(model.ResolutionTimeout))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT prompt, expected_answer, COUNT(*) AS attempts,
		SUM(CASE WHEN score >= ? THEN 1 ELSE 0 END) AS correct,
		SUM(score) AS score_sum,
		SUM(CASE WHEN resolution = ? THEN 1 ELSE 0 END) AS timeouts
		FROM session_items
		WHERE session_id IN (%s)
		GROUP BY prompt, expected_answer
		ORDER BY prompt ASC`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.QuestionAggregate
	for rows.Next() {
		var agg model.QuestionAggregate
		if err := rows.Scan(&agg.Prompt, &agg.ExpectedAnswer, &agg.Attempts, &agg.Correct,
			&agg.ScoreSum, &agg.Timeouts); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
