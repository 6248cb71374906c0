// Package quiz implements the quiz session state machine and its timing parts.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/phanngoc/olympia/internal/model"
)

const (
	// NoAnswerMarker is the submitted answer recorded for a round that timed out.
	NoAnswerMarker = "no answer in time"
	// TimeoutFeedback is the feedback recorded for a round that timed out.
	TimeoutFeedback = "Time is up! You did not answer this question in time."
)

// ErrNoSpeech is attached to the round when a recording transcribed to nothing.
var ErrNoSpeech = fmt.Errorf("%w: no speech detected", ErrTranscriptionFailed)

// SessionState is the session-level phase.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionActive
	SessionComplete
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// RoundState is the phase of the current round.
type RoundState int

const (
	RoundLoading RoundState = iota
	RoundAwaitingAnswer
	RoundAwaitingEvaluation
	RoundShowingResult
)

func (s RoundState) String() string {
	switch s {
	case RoundLoading:
		return "loading"
	case RoundAwaitingAnswer:
		return "awaiting-answer"
	case RoundAwaitingEvaluation:
		return "awaiting-evaluation"
	case RoundShowingResult:
		return "showing-result"
	default:
		return "unknown"
	}
}

// Resolution is the exclusive completion flag of a round.
type Resolution int

const (
	ResolutionPending Resolution = iota
	ResolvedByAnswer
	ResolvedByTimeout
	ResolvedBySkip
)

func (r Resolution) String() string {
	switch r {
	case ResolutionPending:
		return "pending"
	case ResolvedByAnswer:
		return "answer"
	case ResolvedByTimeout:
		return "timeout"
	case ResolvedBySkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Progress is the 1-based position in the session. Current is Total+1 once complete.
type Progress struct {
	Current int
	Total   int
}

// Deps are the collaborators of a session. Transcriber, Recorder, Cues and
// Logger are optional.
type Deps struct {
	Questions   QuestionProvider
	Evaluator   Evaluator
	Transcriber Transcriber
	Recorder    Recorder
	Cues        CuePlayer
	Logger      *slog.Logger
}

// Option customizes a Session.
type Option func(*Session)

// WithTick replaces tea.Tick for the answer timer and the capture cap.
func WithTick(tick TickFunc) Option {
	return func(s *Session) {
		s.tick = tick
	}
}

// WithContext sets the parent of every round context.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.parent = ctx
	}
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Snapshot is a read-only view of a session. The round fields (Round,
// Resolution, Question, PendingAnswer, LastResult, Err) describe the current
// round only while State is SessionActive; they are cleared once the session
// completes, and the results live in History and Stats.
type Snapshot struct {
	State         SessionState
	Round         RoundState
	Resolution    Resolution
	Question      *model.Question
	Timer         TimerState
	Capture       CaptureState
	PendingAnswer string
	LastResult    *model.QuizItem
	Err           error
	Progress      Progress
	Stats         AggregateStats
	History       []model.QuizItem
	StartedAt     time.Time
	EndedAt       time.Time
}

type questionMsg struct {
	round    int
	req      int
	question model.Question
	err      error
}

type evaluationMsg struct {
	round int
	req   int
	eval  model.Evaluation
	err   error
}

// Session drives one quiz run. It is not safe for concurrent use; every call
// is expected to come from the bubbletea update loop.
type Session struct {
	cfg    model.Config
	deps   Deps
	log    *slog.Logger
	tick   TickFunc
	now    func() time.Time
	parent context.Context

	timer   *Timer
	capture *CaptureWindow
	history History

	state      SessionState
	round      RoundState
	resolution Resolution
	recorded   bool
	question   *model.Question
	pending    string
	last       *model.QuizItem
	err        error
	current    int

	roundSeq    int
	reqID       int
	roundCtx    context.Context
	cancelRound context.CancelFunc

	startedAt time.Time
	endedAt   time.Time
}

// New validates cfg and returns an idle session.
func New(cfg model.Config, deps Deps, opts ...Option) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if deps.Questions == nil {
		return nil, errors.New("quiz: question provider is required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("quiz: evaluator is required")
	}
	if deps.Cues == nil {
		deps.Cues = nopPlayer{}
	}
	s := &Session{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger,
		now:    time.Now,
		parent: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	s.timer = NewTimer(s.tick)
	s.capture = newCaptureWindow(s.tick)
	s.Reset()
	return s, nil
}

func validateConfig(cfg model.Config) error {
	if cfg.TotalQuestions <= 0 {
		return fmt.Errorf("quiz: total questions must be > 0, got %d", cfg.TotalQuestions)
	}
	if cfg.AnswerSeconds <= 0 {
		return fmt.Errorf("quiz: answer seconds must be > 0, got %d", cfg.AnswerSeconds)
	}
	if cfg.CaptureSeconds <= 0 {
		return fmt.Errorf("quiz: capture seconds must be > 0, got %d", cfg.CaptureSeconds)
	}
	if cfg.CaptureSeconds > cfg.AnswerSeconds {
		return fmt.Errorf("quiz: capture seconds (%d) must not exceed answer seconds (%d)", cfg.CaptureSeconds, cfg.AnswerSeconds)
	}
	return nil
}

// Config returns the session settings.
func (s *Session) Config() model.Config {
	return s.cfg
}

// VoiceEnabled reports whether StartCapture can work.
func (s *Session) VoiceEnabled() bool {
	return s.deps.Recorder != nil && s.deps.Transcriber != nil
}

// Start begins the first round of an idle session.
func (s *Session) Start() (tea.Cmd, error) {
	if s.state != SessionIdle {
		return nil, fmt.Errorf("start: %w", ErrInvalidAction)
	}
	s.state = SessionActive
	s.current = 1
	s.startedAt = s.now()
	s.log.Debug("session started", "total", s.cfg.TotalQuestions)
	return s.beginRound(), nil
}

// SubmitTranscript offers a typed or transcribed answer. Blank answers are ignored.
func (s *Session) SubmitTranscript(text string) (tea.Cmd, error) {
	if s.state != SessionActive || s.round != RoundAwaitingAnswer {
		return nil, fmt.Errorf("submit: %w", ErrInvalidAction)
	}
	answer := strings.TrimSpace(text)
	if answer == "" {
		return nil, nil
	}
	return s.acceptAnswer(answer), nil
}

// StartCapture opens the capture window for a spoken answer.
func (s *Session) StartCapture() (tea.Cmd, error) {
	if !s.VoiceEnabled() {
		return nil, ErrVoiceUnavailable
	}
	if s.state != SessionActive || s.round != RoundAwaitingAnswer || s.capture.State() != CaptureIdle {
		return nil, fmt.Errorf("capture: %w", ErrInvalidAction)
	}
	seconds := min(s.cfg.CaptureSeconds, s.timer.Remaining())
	if seconds <= 0 {
		return nil, fmt.Errorf("capture: %w", ErrInvalidAction)
	}
	s.err = nil
	limit := time.Duration(seconds) * time.Second
	s.log.Debug("capture opened", "round", s.roundSeq, "limit", limit)
	open := s.capture.Open(s.roundCtx, s.roundSeq, limit, s.deps.Recorder, s.deps.Transcriber)
	return tea.Batch(open, s.cue(model.CueRecording)), nil
}

// StopCapture ends an in-progress recording early.
func (s *Session) StopCapture() (tea.Cmd, error) {
	if s.state != SessionActive || !s.capture.StopRecording() {
		return nil, fmt.Errorf("stop capture: %w", ErrInvalidAction)
	}
	return nil, nil
}

// Retry repeats the request that failed in the current round.
func (s *Session) Retry() (tea.Cmd, error) {
	if s.state != SessionActive || s.err == nil {
		return nil, fmt.Errorf("retry: %w", ErrInvalidAction)
	}
	switch s.round {
	case RoundLoading:
		s.err = nil
		return s.fetch(), nil
	case RoundAwaitingEvaluation:
		s.err = nil
		return s.evaluate(), nil
	case RoundAwaitingAnswer:
		if s.capture.State() == CaptureIdle && s.VoiceEnabled() {
			return s.StartCapture()
		}
	}
	return nil, fmt.Errorf("retry: %w", ErrInvalidAction)
}

// Skip abandons the current round and advances.
func (s *Session) Skip() (tea.Cmd, error) {
	if s.state != SessionActive {
		return nil, fmt.Errorf("skip: %w", ErrInvalidAction)
	}
	switch s.round {
	case RoundAwaitingAnswer, RoundShowingResult:
	case RoundLoading, RoundAwaitingEvaluation:
		if s.err == nil {
			return nil, fmt.Errorf("skip: %w", ErrInvalidAction)
		}
	}
	if s.resolution == ResolutionPending {
		s.resolution = ResolvedBySkip
	}
	s.log.Debug("round skipped", "round", s.roundSeq, "state", s.round)
	return s.advance(), nil
}

// Advance moves on from a shown result.
func (s *Session) Advance() (tea.Cmd, error) {
	if s.state != SessionActive || s.round != RoundShowingResult {
		return nil, fmt.Errorf("advance: %w", ErrInvalidAction)
	}
	return s.advance(), nil
}

// Reset returns the session to idle and discards every recorded round.
func (s *Session) Reset() {
	s.endRound()
	s.roundSeq++
	s.history.Reset()
	s.state = SessionIdle
	s.capture.reset()
	s.clearRound()
	s.current = 1
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
}

// Update consumes the messages produced by the session's own commands.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		cmd, expired := s.timer.Update(msg)
		if expired {
			return s.expire()
		}
		return cmd
	case captureDeadlineMsg:
		if s.capture.Update(msg) {
			s.log.Debug("capture cap reached", "round", s.roundSeq)
		}
	case questionMsg:
		return s.handleQuestion(msg)
	case transcriptMsg:
		return s.handleTranscript(msg)
	case evaluationMsg:
		return s.handleEvaluation(msg)
	}
	return nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:         s.state,
		Round:         s.round,
		Resolution:    s.resolution,
		Timer:         s.timer.State(),
		Capture:       s.capture.State(),
		PendingAnswer: s.pending,
		Err:           s.err,
		Progress:      Progress{Current: s.current, Total: s.cfg.TotalQuestions},
		Stats:         s.history.Stats(),
		History:       s.history.Items(),
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
	}
	if s.question != nil {
		q := *s.question
		snap.Question = &q
	}
	if s.last != nil {
		item := *s.last
		snap.LastResult = &item
	}
	return snap
}

func (s *Session) beginRound() tea.Cmd {
	s.endRound()
	s.roundSeq++
	s.roundCtx, s.cancelRound = context.WithCancel(s.parent)
	s.capture.reset()
	s.clearRound()
	s.log.Debug("round started", "round", s.roundSeq, "index", s.current)
	return s.fetch()
}

// endRound cancels everything still in flight for the current round. A
// capture window that is still open is closed as cancelled.
func (s *Session) endRound() {
	if s.cancelRound != nil {
		s.cancelRound()
		s.cancelRound = nil
	}
	s.timer.Stop()
	if st := s.capture.State(); st == CaptureRecording || st == CaptureTranscribing {
		s.capture.Close(CloseCancelled)
		s.log.Debug("capture cancelled", "round", s.roundSeq)
	}
}

func (s *Session) clearRound() {
	s.round = RoundLoading
	s.resolution = ResolutionPending
	s.recorded = false
	s.question = nil
	s.pending = ""
	s.last = nil
	s.err = nil
	s.timer.Reset(s.cfg.AnswerSeconds)
}

func (s *Session) advance() tea.Cmd {
	s.endRound()
	s.current++
	if s.current > s.cfg.TotalQuestions {
		s.state = SessionComplete
		s.endedAt = s.now()
		s.roundSeq++
		s.clearRound()
		s.log.Debug("session complete", "resolved", s.history.Len())
		return s.cue(model.CueComplete)
	}
	return s.beginRound()
}

func (s *Session) fetch() tea.Cmd {
	s.reqID++
	round, req, ctx := s.roundSeq, s.reqID, s.roundCtx
	provider := s.deps.Questions
	return func() tea.Msg {
		q, err := provider.FetchRandomQuestion(ctx)
		return questionMsg{round: round, req: req, question: q, err: err}
	}
}

func (s *Session) evaluate() tea.Cmd {
	invariant(s.question != nil, "evaluation without a question")
	s.reqID++
	round, req, ctx := s.roundSeq, s.reqID, s.roundCtx
	id, answer := s.question.ID, s.pending
	evaluator := s.deps.Evaluator
	return func() tea.Msg {
		eval, err := evaluator.Evaluate(ctx, id, answer)
		return evaluationMsg{round: round, req: req, eval: eval, err: err}
	}
}

func (s *Session) handleQuestion(msg questionMsg) tea.Cmd {
	if msg.round != s.roundSeq || msg.req != s.reqID || s.round != RoundLoading {
		s.log.Debug("discarded stale question", "round", msg.round, "req", msg.req)
		return nil
	}
	if msg.err != nil {
		s.err = classify(ErrProviderUnavailable, msg.err)
		s.log.Warn("fetch question failed", "round", s.roundSeq, "err", msg.err)
		return nil
	}
	q := msg.question
	s.question = &q
	s.err = nil
	s.round = RoundAwaitingAnswer
	s.log.Debug("question ready", "round", s.roundSeq, "id", q.ID)
	return s.timer.Start(s.cfg.AnswerSeconds)
}

func (s *Session) handleTranscript(msg transcriptMsg) tea.Cmd {
	if msg.round != s.roundSeq || s.round != RoundAwaitingAnswer || !s.capture.accepts(msg.seq) {
		s.log.Debug("discarded stale transcript", "round", msg.round)
		return nil
	}
	if msg.err != nil {
		s.capture.rearm()
		s.err = msg.err
		s.log.Warn("transcription failed", "round", s.roundSeq, "err", msg.err)
		return nil
	}
	answer := strings.TrimSpace(msg.text)
	if answer == "" {
		s.capture.rearm()
		s.err = ErrNoSpeech
		return nil
	}
	return s.acceptAnswer(answer)
}

func (s *Session) acceptAnswer(answer string) tea.Cmd {
	invariant(s.resolution == ResolutionPending, "answer accepted for a round resolved by %s", s.resolution)
	s.resolution = ResolvedByAnswer
	s.timer.Stop()
	s.capture.Close(CloseTranscript)
	s.pending = answer
	s.err = nil
	s.round = RoundAwaitingEvaluation
	s.log.Debug("answer accepted", "round", s.roundSeq)
	return s.evaluate()
}

func (s *Session) expire() tea.Cmd {
	invariant(s.round == RoundAwaitingAnswer, "timer expired while %s", s.round)
	if s.resolution != ResolutionPending {
		return nil
	}
	s.resolution = ResolvedByTimeout
	s.capture.Close(CloseTimeout)
	s.pending = ""
	s.err = nil
	s.record(model.QuizItem{
		SubmittedAnswer: NoAnswerMarker,
		Score:           0,
		Feedback:        TimeoutFeedback,
		Resolution:      model.ResolutionTimeout,
	})
	s.log.Debug("round timed out", "round", s.roundSeq)
	return s.cue(model.CueIncorrect)
}

func (s *Session) handleEvaluation(msg evaluationMsg) tea.Cmd {
	if msg.round != s.roundSeq || msg.req != s.reqID || s.round != RoundAwaitingEvaluation {
		s.log.Debug("discarded stale evaluation", "round", msg.round, "req", msg.req)
		return nil
	}
	if msg.err != nil {
		s.err = classify(ErrEvaluationFailed, msg.err)
		s.log.Warn("evaluation failed", "round", s.roundSeq, "err", msg.err)
		return nil
	}
	score := clampScore(msg.eval.Score)
	if score != msg.eval.Score {
		s.log.Warn("evaluator score clamped", "score", msg.eval.Score)
	}
	s.record(model.QuizItem{
		SubmittedAnswer: s.pending,
		Score:           score,
		Feedback:        msg.eval.Feedback,
		Resolution:      model.ResolutionAnswer,
	})
	if score >= PassingScore {
		return s.cue(model.CueCorrect)
	}
	return s.cue(model.CueIncorrect)
}

// record fills in the question fields, appends item and shows it.
func (s *Session) record(item model.QuizItem) {
	invariant(!s.recorded, "round %d recorded twice", s.roundSeq)
	invariant(s.question != nil, "round %d recorded without a question", s.roundSeq)
	item.QuestionID = s.question.ID
	item.Prompt = s.question.Prompt
	item.ExpectedAnswer = s.question.ExpectedAnswer
	s.history.Record(item)
	s.recorded = true
	s.last = &item
	s.round = RoundShowingResult
}

func (s *Session) cue(c model.Cue) tea.Cmd {
	player := s.deps.Cues
	return func() tea.Msg {
		player.Play(c)
		return nil
	}
}
