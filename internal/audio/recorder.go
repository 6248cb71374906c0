package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// CommandRecorder implements quiz.Recorder by running a recording command.
//
// With a {file} placeholder the command writes the file and the recorder reads
// it back; otherwise the audio is taken from stdout. The command is interrupted
// with SIGINT when the context ends so it can finalize what it captured.
type CommandRecorder struct {
	tmpl      template
	waitDelay time.Duration
}

// NewCommandRecorder returns a recorder for command, or DefaultRecordCommand when empty.
func NewCommandRecorder(command string) (*CommandRecorder, error) {
	if command == "" {
		command = DefaultRecordCommand
	}
	tmpl, err := parseTemplate(command)
	if err != nil {
		return nil, err
	}
	return &CommandRecorder{tmpl: tmpl, waitDelay: 2 * time.Second}, nil
}

// Record captures audio for at most limit.
func (r *CommandRecorder) Record(ctx context.Context, limit time.Duration) ([]byte, error) {
	seconds := int(math.Ceil(limit.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	var file string
	if r.tmpl.hasFile() {
		dir, err := os.MkdirTemp("", "olympia-rec-")
		if err != nil {
			return nil, fmt.Errorf("audio: create temp dir: %w", err)
		}
		defer func() {
			if rerr := os.RemoveAll(dir); rerr != nil {
				// Best-effort cleanup of the recording.
				_ = rerr
			}
		}()
		file = filepath.Join(dir, "answer.wav")
	}

	name, args := r.tmpl.expand(seconds, file, false)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	data := stdout.Bytes()
	if file != "" {
		read, err := os.ReadFile(file)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("audio: read recording: %w", err)
		}
		data = read
	}
	if len(data) > 0 {
		// An interrupted recorder still leaves usable audio.
		return data, nil
	}
	if runErr != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("audio: %s: %w: %s", name, runErr, msg)
		}
		return nil, fmt.Errorf("audio: %s: %w", name, runErr)
	}
	return nil, fmt.Errorf("audio: %s produced no audio", name)
}
