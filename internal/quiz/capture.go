package quiz

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// CaptureState is the phase of the answer-capture window.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
	CaptureTranscribing
	CaptureClosed
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureRecording:
		return "recording"
	case CaptureTranscribing:
		return "transcribing"
	case CaptureClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason records which trigger closed the window.
type CloseReason int

const (
	CloseNone CloseReason = iota
	CloseTranscript
	CloseTimeout
	CloseCancelled
)

func (r CloseReason) String() string {
	switch r {
	case CloseNone:
		return "none"
	case CloseTranscript:
		return "transcript"
	case CloseTimeout:
		return "timeout"
	case CloseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type captureDeadlineMsg struct {
	seq int
}

type transcriptMsg struct {
	round int
	seq   int
	text  string
	err   error
}

// CaptureWindow bounds the interval in which a spoken answer may be recorded.
//
// The window closes once, by whichever trigger comes first. Results from a
// recording that belongs to an earlier opening, or that arrive after the window
// closed, are rejected by accepts.
type CaptureWindow struct {
	seq           int
	state         CaptureState
	reason        CloseReason
	cancel        context.CancelFunc
	stopRecording context.CancelFunc
	tick          TickFunc
}

func newCaptureWindow(tick TickFunc) *CaptureWindow {
	if tick == nil {
		tick = tea.Tick
	}
	return &CaptureWindow{tick: tick}
}

// Open starts recording for at most limit and returns the command that records
// and transcribes. The cap only bounds the recording; the transcript of that
// audio is still accepted until the window is closed.
func (c *CaptureWindow) Open(parent context.Context, round int, limit time.Duration, rec Recorder, tr Transcriber) tea.Cmd {
	invariant(c.state == CaptureIdle, "capture opened while %s", c.state)
	invariant(limit > 0, "capture opened with limit %s", limit)
	c.seq++
	seq := c.seq
	ctx, cancel := context.WithCancel(parent)
	recCtx, stop := context.WithTimeout(ctx, limit)
	c.cancel = cancel
	c.stopRecording = stop
	c.state = CaptureRecording

	capture := func() tea.Msg {
		audio, err := rec.Record(recCtx, limit)
		stop()
		if err != nil && len(audio) == 0 {
			return transcriptMsg{round: round, seq: seq, err: classify(ErrTranscriptionFailed, fmt.Errorf("record: %w", err))}
		}
		text, err := tr.Transcribe(ctx, audio)
		if err != nil {
			return transcriptMsg{round: round, seq: seq, err: classify(ErrTranscriptionFailed, err)}
		}
		return transcriptMsg{round: round, seq: seq, text: text}
	}
	deadline := c.tick(limit, func(time.Time) tea.Msg {
		return captureDeadlineMsg{seq: seq}
	})
	return tea.Batch(capture, deadline)
}

// StopRecording ends the recording early; the captured audio is still transcribed.
func (c *CaptureWindow) StopRecording() bool {
	if c.state != CaptureRecording {
		return false
	}
	c.stopRecording()
	c.state = CaptureTranscribing
	return true
}

// Update handles the capture cap deadline.
func (c *CaptureWindow) Update(msg tea.Msg) bool {
	deadline, ok := msg.(captureDeadlineMsg)
	if !ok || deadline.seq != c.seq {
		return false
	}
	return c.StopRecording()
}

// Close closes the window with reason. Only the first call wins.
func (c *CaptureWindow) Close(reason CloseReason) bool {
	if c.state == CaptureClosed {
		return false
	}
	c.release()
	c.state = CaptureClosed
	c.reason = reason
	return true
}

// State returns the current phase.
func (c *CaptureWindow) State() CaptureState {
	return c.state
}

// Reason returns the trigger that closed the window, or CloseNone.
func (c *CaptureWindow) Reason() CloseReason {
	return c.reason
}

func (c *CaptureWindow) accepts(seq int) bool {
	return seq == c.seq && (c.state == CaptureRecording || c.state == CaptureTranscribing)
}

// rearm returns an in-flight window to idle after a failed or empty transcription.
func (c *CaptureWindow) rearm() {
	invariant(c.state == CaptureRecording || c.state == CaptureTranscribing, "capture rearmed while %s", c.state)
	c.release()
	c.state = CaptureIdle
}

// reset prepares the window for a new round and invalidates anything in flight.
func (c *CaptureWindow) reset() {
	c.release()
	c.seq++
	c.state = CaptureIdle
	c.reason = CloseNone
}

func (c *CaptureWindow) release() {
	if c.stopRecording != nil {
		c.stopRecording()
		c.stopRecording = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
