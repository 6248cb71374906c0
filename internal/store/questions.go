package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

const passingScore = quiz.PassingScore

// ErrQuestionNotFound is returned by LookupQuestion for an unknown id.
var ErrQuestionNotFound = errors.New("question not found")

// InsertQuestions adds questions to the bank, skipping prompts it already holds.
// It returns the number of rows actually inserted.
func (s *Store) InsertQuestions(ctx context.Context, source string, questions []model.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
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

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO questions (prompt, answer, source) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	inserted := 0
	for _, q := range questions {
		var res sql.Result
		res, err = stmt.ExecContext(ctx, q.Prompt, q.ExpectedAnswer, source)
		if err != nil {
			return 0, fmt.Errorf("insert %q: %w", q.Prompt, err)
		}
		n, rerr := res.RowsAffected()
		if rerr != nil {
			err = rerr
			return 0, err
		}
		inserted += int(n)
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountQuestions returns the size of the bank.
func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FetchRandomQuestion picks a question uniformly at random.
func (s *Store) FetchRandomQuestion(ctx context.Context) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, answer FROM questions ORDER BY RANDOM() LIMIT 1`).
		Scan(&q.ID, &q.Prompt, &q.ExpectedAnswer)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Question{}, fmt.Errorf("%w: question bank is empty, run olympia import", quiz.ErrProviderUnavailable)
	}
	if err != nil {
		return model.Question{}, fmt.Errorf("%w: %w", quiz.ErrProviderUnavailable, err)
	}
	return q, nil
}

// LookupQuestion returns the question with id.
func (s *Store) LookupQuestion(ctx context.Context, id int64) (model.Question, error) {
	q := model.Question{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt, answer FROM questions WHERE id = ?`, id).
		Scan(&q.Prompt, &q.ExpectedAnswer)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Question{}, fmt.Errorf("%w: id %d", ErrQuestionNotFound, id)
	}
	if err != nil {
		return model.Question{}, err
	}
	return q, nil
}
