// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Quiz      QuizConfig     `toml:"quiz"`
	Providers ProviderConfig `toml:"providers"`
	Audio     AudioConfig    `toml:"audio"`
	Log       LogConfig      `toml:"log"`
}

// QuizConfig maps session-related settings.
type QuizConfig struct {
	Questions      *int `toml:"questions"`
	AnswerSeconds  *int `toml:"answer-seconds"`
	CaptureSeconds *int `toml:"capture-seconds"`
}

// ProviderConfig maps question, evaluation and transcription backends.
type ProviderConfig struct {
	Mode           *string `toml:"mode"`
	APIURL         *string `toml:"api-url"`
	Grader         *string `toml:"grader"`
	EvaluatorModel *string `toml:"evaluator-model"`
	Transcriber    *string `toml:"transcriber"`
	WhisperURL     *string `toml:"whisper-url"`
	Language       *string `toml:"language"`
}

// AudioConfig maps recording and cue playback commands.
type AudioConfig struct {
	RecordCommand *string `toml:"record-command"`
	PlayCommand   *string `toml:"play-command"`
	SoundsDir     *string `toml:"sounds-dir"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
