package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds secrets and endpoint overrides read from the environment.
type Env struct {
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	APIURL        string `env:"OLYMPIA_API_URL"`
	WhisperURL    string `env:"OLYMPIA_WHISPER_URL"`
	LogLevel      string `env:"OLYMPIA_LOG_LEVEL"`
}

// LoadEnv loads the given .env files when they exist and parses Env.
// Variables already present in the process environment win over .env values.
func LoadEnv(dotenvPaths ...string) (Env, error) {
	for _, path := range dotenvPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Env{}, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return Env{}, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
