package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/phanngoc/olympia/internal/quiz"
)

// OpenAI transcribes with the OpenAI audio transcription API.
type OpenAI struct {
	client   oai.Client
	model    string
	language string
}

// NewOpenAI returns an OpenAI transcriber. baseURL and language may be empty.
func NewOpenAI(apiKey, baseURL, language string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty (set OPENAI_API_KEY)")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAI{
		client:   oai.NewClient(reqOpts...),
		model:    string(oai.AudioModelWhisper1),
		language: language,
	}, nil
}

// Transcribe implements quiz.Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: openai: no audio captured", quiz.ErrTranscriptionFailed)
	}
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = oai.String(o.language)
	}
	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai: transcription: %w", quiz.ErrTranscriptionFailed, err)
	}
	return strings.TrimSpace(res.Text), nil
}
