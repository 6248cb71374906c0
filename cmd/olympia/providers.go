package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/phanngoc/olympia/internal/audio"
	"github.com/phanngoc/olympia/internal/deck"
	"github.com/phanngoc/olympia/internal/evaluator"
	"github.com/phanngoc/olympia/internal/importer"
	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
	"github.com/phanngoc/olympia/internal/remote"
	"github.com/phanngoc/olympia/internal/store"
	"github.com/phanngoc/olympia/internal/transcriber"
)

const (
	modeLocal  = "local"
	modeRemote = "remote"

	transcriberAuto    = "auto"
	transcriberWhisper = "whisper"
	transcriberOpenAI  = "openai"
	transcriberRemote  = "remote"
	transcriberNone    = "none"

	graderAuto   = "auto"
	graderOpenAI = "openai"
	graderRemote = "remote"

	evaluatorTimeout = 30 * time.Second
)

// playOptions is the resolved configuration of one play run.
type playOptions struct {
	Quiz model.Config

	Mode        string
	APIURL      string
	Bank        string
	Grader      string
	Model       string
	Transcriber string
	WhisperURL  string
	Language    string

	RecordCommand string
	PlayCommand   string
	SoundsDir     string
	TextOnly      bool

	OpenAIKey     string
	OpenAIBaseURL string
}

func validateConfig(opts playOptions) error {
	cfg := opts.Quiz
	if cfg.TotalQuestions <= 0 {
		return fmt.Errorf("--questions must be > 0")
	}
	if cfg.AnswerSeconds <= 0 {
		return fmt.Errorf("--answer-seconds must be > 0")
	}
	if cfg.CaptureSeconds <= 0 {
		return fmt.Errorf("--capture-seconds must be > 0")
	}
	if cfg.CaptureSeconds > cfg.AnswerSeconds {
		return fmt.Errorf("--capture-seconds must be <= --answer-seconds")
	}
	switch opts.Mode {
	case modeLocal:
	case modeRemote:
		if opts.Bank != "" {
			return fmt.Errorf("--bank requires --mode local")
		}
		if opts.APIURL == "" {
			return fmt.Errorf("--api-url must not be empty in remote mode")
		}
	default:
		return fmt.Errorf("--mode must be local or remote")
	}
	switch opts.Grader {
	case graderAuto, graderOpenAI:
	case graderRemote:
		if opts.Mode != modeRemote {
			return fmt.Errorf("--grader remote requires --mode remote")
		}
	default:
		return fmt.Errorf("--grader must be one of auto, openai, remote")
	}
	if resolveGrader(opts) == graderOpenAI && opts.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set to grade with OpenAI (or use --mode remote)")
	}
	switch opts.Transcriber {
	case transcriberAuto, transcriberOpenAI, transcriberRemote, transcriberNone:
	case transcriberWhisper:
		if opts.WhisperURL == "" {
			return fmt.Errorf("--whisper-url is required with --transcriber whisper")
		}
	default:
		return fmt.Errorf("--transcriber must be one of auto, whisper, openai, remote, none")
	}
	if opts.Transcriber == transcriberOpenAI && opts.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set for --transcriber openai")
	}
	return nil
}

// resolveGrader turns auto into the grader of the mode: the backend in remote
// mode, OpenAI otherwise.
func resolveGrader(opts playOptions) string {
	if opts.Grader != graderAuto {
		return opts.Grader
	}
	if opts.Mode == modeRemote {
		return graderRemote
	}
	return graderOpenAI
}

// resolveTranscriber turns auto into a concrete backend.
func resolveTranscriber(opts playOptions) string {
	if opts.TextOnly {
		return transcriberNone
	}
	if opts.Transcriber != transcriberAuto {
		return opts.Transcriber
	}
	switch {
	case opts.Mode == modeRemote:
		return transcriberRemote
	case opts.WhisperURL != "":
		return transcriberWhisper
	case opts.OpenAIKey != "":
		return transcriberOpenAI
	default:
		return transcriberNone
	}
}

// buildDeps wires the question source, grader, voice pipeline and cues for opts.
func buildDeps(ctx context.Context, opts playOptions, st *store.Store, logger *slog.Logger) (quiz.Deps, error) {
	deps := quiz.Deps{Logger: logger}
	var client *remote.Client
	if opts.Mode == modeRemote || resolveTranscriber(opts) == transcriberRemote {
		client = remote.New(opts.APIURL)
	}

	var lookup evaluator.QuestionLookup
	switch {
	case opts.Mode == modeRemote:
		deps.Questions = client
		lookup = client
	case opts.Bank != "":
		batch, err := importer.LoadFile(opts.Bank)
		if err != nil {
			return quiz.Deps{}, fmt.Errorf("failed to load --bank: %w", err)
		}
		if len(batch.Questions) == 0 {
			return quiz.Deps{}, fmt.Errorf("--bank %s has no questions", opts.Bank)
		}
		d := deck.New(batch.Questions)
		deps.Questions = d
		lookup = d
		logger.Info("playing from file", "path", opts.Bank, "questions", d.Len(), "skipped", batch.Skipped)
	default:
		count, err := st.CountQuestions(ctx)
		if err != nil {
			return quiz.Deps{}, fmt.Errorf("failed to count questions: %w", err)
		}
		if count == 0 {
			return quiz.Deps{}, fmt.Errorf("question bank is empty\nRun: olympia import <file|dir>\nOr play from a file: olympia --bank questions.csv")
		}
		deps.Questions = st
		lookup = st
	}

	switch resolveGrader(opts) {
	case graderRemote:
		deps.Evaluator = client
	default:
		eval, err := evaluator.New(opts.OpenAIKey, opts.Model, lookup,
			evaluator.WithBaseURL(opts.OpenAIBaseURL),
			evaluator.WithLanguage(opts.Language),
			evaluator.WithTimeout(evaluatorTimeout),
		)
		if err != nil {
			return quiz.Deps{}, err
		}
		deps.Evaluator = eval
	}

	tr, err := buildTranscriber(opts, client)
	if err != nil {
		return quiz.Deps{}, err
	}
	if tr != nil {
		rec, err := buildRecorder(opts.RecordCommand, logger)
		if err != nil {
			return quiz.Deps{}, err
		}
		if rec != nil {
			deps.Transcriber = tr
			deps.Recorder = rec
		}
	}

	player, err := audio.NewCommandPlayer(opts.PlayCommand, opts.SoundsDir, logger)
	if err != nil {
		return quiz.Deps{}, fmt.Errorf("--play-command: %w", err)
	}
	if cues := player.Available(); len(cues) > 0 {
		deps.Cues = player
		logger.Debug("audio cues enabled", "dir", opts.SoundsDir, "cues", len(cues))
	}
	return deps, nil
}

func buildTranscriber(opts playOptions, client *remote.Client) (quiz.Transcriber, error) {
	switch resolveTranscriber(opts) {
	case transcriberWhisper:
		return transcriber.NewWhisper(opts.WhisperURL, transcriber.WithWhisperLanguage(opts.Language))
	case transcriberOpenAI:
		return transcriber.NewOpenAI(opts.OpenAIKey, opts.OpenAIBaseURL, opts.Language)
	case transcriberRemote:
		return client, nil
	default:
		return nil, nil
	}
}

// buildRecorder returns nil when the recording program is not installed, which
// leaves the quiz in typed-answer mode.
func buildRecorder(command string, logger *slog.Logger) (quiz.Recorder, error) {
	rec, err := audio.NewCommandRecorder(command)
	if err != nil {
		return nil, fmt.Errorf("--record-command: %w", err)
	}
	program := audio.DefaultRecordCommand
	if strings.TrimSpace(command) != "" {
		program = command
	}
	name := strings.Fields(program)[0]
	if _, err := exec.LookPath(name); err != nil {
		logger.Warn("voice answers disabled", "program", name, "err", err)
		return nil, nil
	}
	return rec, nil
}
