// Package model defines shared data structures.
package model

import "time"

// Config defines quiz session settings.
type Config struct {
	TotalQuestions int
	AnswerSeconds  int
	CaptureSeconds int
}

// StatsConfig defines filters and options for history output.
type StatsConfig struct {
	Since       *time.Time
	Last        int
	CurveWindow int
	MissedTop   int
}

// Question is a trivia prompt with its expected answer.
type Question struct {
	ID             int64
	Prompt         string
	ExpectedAnswer string
}

// Evaluation is the evaluator verdict for a submitted answer.
type Evaluation struct {
	Score    int
	Feedback string
}

// Resolution labels how a round ended.
type Resolution string

const (
	ResolutionAnswer  Resolution = "answer"
	ResolutionTimeout Resolution = "timeout"
	ResolutionSkip    Resolution = "skip"
)

// QuizItem records a resolved round.
type QuizItem struct {
	QuestionID      int64
	Prompt          string
	SubmittedAnswer string
	ExpectedAnswer  string
	Score           int
	Feedback        string
	Resolution      Resolution
}

// Cue names an audio cue.
type Cue string

const (
	CueCorrect   Cue = "correct"
	CueIncorrect Cue = "incorrect"
	CueRecording Cue = "recording"
	CueComplete  Cue = "complete"
)

// Cues lists every cue in display order.
var Cues = []Cue{CueCorrect, CueIncorrect, CueRecording, CueComplete}

// SessionRecord captures a completed quiz session.
type SessionRecord struct {
	StartedAt      time.Time
	EndedAt        time.Time
	TotalQuestions int
	Resolved       int
	Correct        int
	AverageScore   int
	DurationMs     int64
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	SessionID      int64
	EndedAt        time.Time
	TotalQuestions int
	Resolved       int
	Correct        int
	AverageScore   int
	DurationMs     int64
}

// QuestionAggregate aggregates outcomes for one prompt across sessions.
type QuestionAggregate struct {
	Prompt         string
	ExpectedAnswer string
	Attempts       int
	Correct        int
	ScoreSum       int
	Timeouts       int
}
