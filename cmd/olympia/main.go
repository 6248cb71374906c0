// Package main provides the CLI entrypoint for olympia.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/phanngoc/olympia/internal/audio"
	"github.com/phanngoc/olympia/internal/config"
	"github.com/phanngoc/olympia/internal/evaluator"
	"github.com/phanngoc/olympia/internal/importer"
	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
	"github.com/phanngoc/olympia/internal/remote"
	"github.com/phanngoc/olympia/internal/stats"
	"github.com/phanngoc/olympia/internal/statsui"
	"github.com/phanngoc/olympia/internal/store"
	"github.com/phanngoc/olympia/internal/tui"
)

const (
	defaultQuestions      = 10
	defaultAnswerSeconds  = 10
	defaultCaptureSeconds = 5
	defaultMode           = modeLocal
	defaultTranscriber    = transcriberAuto
	defaultGrader         = graderAuto
	defaultLogLevel       = "info"
	defaultCurveWindow    = 10
	defaultMissedTop      = 10
	defaultImportWorkers  = 4
)

var (
	playQuestions      int
	playAnswerSeconds  int
	playCaptureSeconds int
	playMode           string
	playAPIURL         string
	playBank           string
	playGrader         string
	playModel          string
	playTranscriber    string
	playWhisperURL     string
	playLanguage       string
	playRecordCommand  string
	playPlayCommand    string
	playSoundsDir      string
	playLogLevel       string
	playTextOnly       bool

	dbPath string

	historySince       string
	historyLast        int
	historyCurveWindow int
	historyTop         int
	historyPlain       bool

	importWorkers int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "olympia",
		Short:         "Timed trivia quiz in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "path to the SQLite database")

	rootCmd.Flags().IntVar(&playQuestions, "questions", defaultQuestions, "questions per session")
	rootCmd.Flags().IntVar(&playAnswerSeconds, "answer-seconds", defaultAnswerSeconds, "seconds to answer each question")
	rootCmd.Flags().IntVar(&playCaptureSeconds, "capture-seconds", defaultCaptureSeconds, "maximum seconds of one voice recording")
	rootCmd.Flags().StringVar(&playMode, "mode", defaultMode, "backend mode: local or remote")
	rootCmd.Flags().StringVar(&playAPIURL, "api-url", remote.DefaultURL, "quiz API base URL in remote mode")
	rootCmd.Flags().StringVar(&playBank, "bank", "", "play from a CSV or XLSX file instead of the stored bank")
	rootCmd.Flags().StringVar(&playGrader, "grader", defaultGrader, "answer grading: auto, openai or remote")
	rootCmd.Flags().StringVar(&playModel, "model", evaluator.DefaultModel, "OpenAI model used to grade answers")
	rootCmd.Flags().StringVar(&playTranscriber, "transcriber", defaultTranscriber, "speech-to-text: auto, whisper, openai, remote or none")
	rootCmd.Flags().StringVar(&playWhisperURL, "whisper-url", "", "whisper.cpp server URL")
	rootCmd.Flags().StringVar(&playLanguage, "language", "", "answer language code, e.g. vi")
	rootCmd.Flags().StringVar(&playRecordCommand, "record-command", audio.DefaultRecordCommand, "command that records one answer")
	rootCmd.Flags().StringVar(&playPlayCommand, "play-command", audio.DefaultPlayCommand, "command that plays a cue file")
	rootCmd.Flags().StringVar(&playSoundsDir, "sounds-dir", config.DefaultSoundsDir(), "directory with correct, incorrect, recording and complete cue files")
	rootCmd.Flags().StringVar(&playLogLevel, "log-level", defaultLogLevel, "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&playTextOnly, "text-only", false, "disable voice answers")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "questions", &playQuestions, fileCfg.Quiz.Questions)
	applyIntConfig(cmd, "answer-seconds", &playAnswerSeconds, fileCfg.Quiz.AnswerSeconds)
	applyIntConfig(cmd, "capture-seconds", &playCaptureSeconds, fileCfg.Quiz.CaptureSeconds)
	applyStringConfig(cmd, "mode", &playMode, fileCfg.Providers.Mode)
	applyStringConfig(cmd, "api-url", &playAPIURL, fileCfg.Providers.APIURL)
	applyStringConfig(cmd, "grader", &playGrader, fileCfg.Providers.Grader)
	applyStringConfig(cmd, "model", &playModel, fileCfg.Providers.EvaluatorModel)
	applyStringConfig(cmd, "transcriber", &playTranscriber, fileCfg.Providers.Transcriber)
	applyStringConfig(cmd, "whisper-url", &playWhisperURL, fileCfg.Providers.WhisperURL)
	applyStringConfig(cmd, "language", &playLanguage, fileCfg.Providers.Language)
	applyStringConfig(cmd, "record-command", &playRecordCommand, fileCfg.Audio.RecordCommand)
	applyStringConfig(cmd, "play-command", &playPlayCommand, fileCfg.Audio.PlayCommand)
	applyStringConfig(cmd, "sounds-dir", &playSoundsDir, fileCfg.Audio.SoundsDir)
	applyStringConfig(cmd, "log-level", &playLogLevel, fileCfg.Log.Level)

	env, err := config.LoadEnv(".env", config.DefaultEnvPath())
	if err != nil {
		return err
	}
	applyEnvString(cmd, "api-url", &playAPIURL, env.APIURL)
	applyEnvString(cmd, "whisper-url", &playWhisperURL, env.WhisperURL)
	applyEnvString(cmd, "log-level", &playLogLevel, env.LogLevel)

	opts := playOptions{
		Quiz: model.Config{
			TotalQuestions: playQuestions,
			AnswerSeconds:  playAnswerSeconds,
			CaptureSeconds: playCaptureSeconds,
		},
		Mode:          strings.ToLower(strings.TrimSpace(playMode)),
		APIURL:        playAPIURL,
		Bank:          playBank,
		Grader:        strings.ToLower(strings.TrimSpace(playGrader)),
		Model:         playModel,
		Transcriber:   strings.ToLower(strings.TrimSpace(playTranscriber)),
		WhisperURL:    playWhisperURL,
		Language:      playLanguage,
		RecordCommand: playRecordCommand,
		PlayCommand:   playPlayCommand,
		SoundsDir:     playSoundsDir,
		TextOnly:      playTextOnly,
		OpenAIKey:     env.OpenAIKey,
		OpenAIBaseURL: env.OpenAIBaseURL,
	}
	if err := validateConfig(opts); err != nil {
		return err
	}
	level, err := config.ParseLogLevel(playLogLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	logger, logCloser, err := config.OpenLogger(config.DefaultLogPath(), level)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logCloser.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildDeps(ctx, opts, st, logger)
	if err != nil {
		return err
	}
	session, err := quiz.New(opts.Quiz, deps, quiz.WithContext(ctx))
	if err != nil {
		return err
	}
	logger.Info("session starting",
		"mode", opts.Mode,
		"questions", opts.Quiz.TotalQuestions,
		"answer_seconds", opts.Quiz.AnswerSeconds,
		"voice", session.VoiceEnabled(),
	)

	ui := tui.NewModel(session, st, logger)
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|dir>...",
		Short: "Import questions from CSV or XLSX files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().IntVar(&importWorkers, "workers", defaultImportWorkers, "files parsed in parallel")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	if importWorkers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	files, err := importer.Expand(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV or XLSX files found")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logErrf("Reading %d file(s)...\n", len(files))
	batches, err := importer.LoadFiles(ctx, files, importWorkers)
	if err != nil {
		return err
	}
	total := 0
	for _, batch := range batches {
		inserted, err := st.InsertQuestions(ctx, batch.Source, batch.Questions)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", batch.Source, err)
		}
		total += inserted
		logErrf("%s: %d new, %d duplicate, %d skipped\n",
			batch.Source, inserted, len(batch.Questions)-inserted, batch.Skipped)
	}
	count, err := st.CountQuestions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	logErrf("Imported %d question(s); the bank holds %d\n", total, count)
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&historyCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().IntVar(&historyTop, "top", defaultMissedTop, "number of most missed questions")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a text report instead of the browser")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig(historySince, historyLast, historyCurveWindow, historyTop)
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if historyPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printHistory(context.Background(), cmd.OutOrStdout(), st, cfg)
	}
	ui := statsui.NewModel(st, cfg)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func historyConfig(since string, last, window, top int) (model.StatsConfig, error) {
	var sinceTime *time.Time
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if window <= 0 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be > 0")
	}
	if top <= 0 {
		return model.StatsConfig{}, fmt.Errorf("--top must be > 0")
	}
	return model.StatsConfig{
		Since:       sinceTime,
		Last:        last,
		CurveWindow: window,
		MissedTop:   top,
	}, nil
}

func printHistory(ctx context.Context, w io.Writer, st *store.Store, cfg model.StatsConfig) error {
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := stats.RenderSummary(w, report.Sessions); err != nil {
		return err
	}
	if err := stats.RenderCurves(w, report.Sessions, cfg.CurveWindow); err != nil {
		return err
	}
	if len(report.Sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return stats.RenderMissedTable(w, report.QuestionsAll, cfg.MissedTop)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// applyEnvString lets a non-empty environment value override the config file.
func applyEnvString(cmd *cobra.Command, name string, target *string, value string) {
	if value == "" || cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# olympia configuration
# Uncomment a value to enable it. CLI flags override config values.
# Secrets live in the environment or %s (OPENAI_API_KEY, OPENAI_BASE_URL).

[quiz]
# questions = %d            # Questions per session
# answer-seconds = %d       # Seconds to answer each question
# capture-seconds = %d       # Maximum seconds of one voice recording

[providers]
# mode = %q            # local (question bank + OpenAI) or remote (quiz API)
# api-url = %q
# grader = %q           # auto, openai (needs OPENAI_API_KEY) or remote
# evaluator-model = %q
# transcriber = %q      # auto, whisper, openai, remote or none
# whisper-url = "http://127.0.0.1:8080"
# language = "vi"

[audio]
# record-command = %q
# play-command = %q
# sounds-dir = %q

[log]
# level = %q
`,
		config.DefaultEnvPath(),
		defaultQuestions,
		defaultAnswerSeconds,
		defaultCaptureSeconds,
		defaultMode,
		remote.DefaultURL,
		defaultGrader,
		evaluator.DefaultModel,
		defaultTranscriber,
		audio.DefaultRecordCommand,
		audio.DefaultPlayCommand,
		config.DefaultSoundsDir(),
		defaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
