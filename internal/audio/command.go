// Package audio records answers and plays cues through external commands.
package audio

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// DefaultRecordCommand records 16 kHz mono WAV with ALSA.
	DefaultRecordCommand = "arecord -q -f S16_LE -r 16000 -c 1 -t wav -d {seconds} {file}"
	// DefaultPlayCommand plays a cue file with PulseAudio.
	DefaultPlayCommand = "paplay {file}"
)

// template is a command line with {seconds} and {file} placeholders.
type template []string

func parseTemplate(command string) (template, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("audio: command is empty")
	}
	return template(parts), nil
}

func (t template) hasFile() bool {
	for _, part := range t {
		if strings.Contains(part, "{file}") {
			return true
		}
	}
	return false
}

// expand substitutes placeholders. When the template has no {file} and file is
// set, file is appended as the last argument.
func (t template) expand(seconds int, file string, appendFile bool) (string, []string) {
	args := make([]string, 0, len(t)+1)
	for _, part := range t[1:] {
		part = strings.ReplaceAll(part, "{seconds}", strconv.Itoa(seconds))
		part = strings.ReplaceAll(part, "{file}", file)
		args = append(args, part)
	}
	if appendFile && file != "" && !t.hasFile() {
		args = append(args, file)
	}
	return t[0], args
}
