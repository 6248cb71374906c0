package audio

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/phanngoc/olympia/internal/model"
)

var cueExtensions = []string{".wav", ".ogg", ".mp3"}

// CommandPlayer implements quiz.CuePlayer by running a playback command on
// cue files named after each cue, e.g. correct.wav.
type CommandPlayer struct {
	tmpl    template
	files   map[model.Cue]string
	timeout time.Duration
	log     *slog.Logger
}

// NewCommandPlayer looks up cue files in soundsDir. Missing files are skipped
// silently at play time.
func NewCommandPlayer(command, soundsDir string, logger *slog.Logger) (*CommandPlayer, error) {
	if command == "" {
		command = DefaultPlayCommand
	}
	tmpl, err := parseTemplate(command)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandPlayer{
		tmpl:    tmpl,
		files:   findCueFiles(soundsDir),
		timeout: 10 * time.Second,
		log:     logger,
	}, nil
}

func findCueFiles(dir string) map[model.Cue]string {
	files := map[model.Cue]string{}
	if dir == "" {
		return files
	}
	for _, cue := range model.Cues {
		for _, ext := range cueExtensions {
			path := filepath.Join(dir, string(cue)+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				files[cue] = path
				break
			}
		}
	}
	return files
}

// Available lists the cues that have a sound file.
func (p *CommandPlayer) Available() []model.Cue {
	var cues []model.Cue
	for _, cue := range model.Cues {
		if _, ok := p.files[cue]; ok {
			cues = append(cues, cue)
		}
	}
	return cues
}

// Play runs the playback command and waits for it. Failures are logged and swallowed.
func (p *CommandPlayer) Play(cue model.Cue) {
	file, ok := p.files[cue]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	name, args := p.tmpl.expand(0, file, true)
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		p.log.Debug("play cue failed", "cue", cue, "err", err)
	}
}
