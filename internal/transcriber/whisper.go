// Package transcriber turns recorded WAV audio into text.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/phanngoc/olympia/internal/quiz"
)

// Whisper sends audio to a whisper.cpp server (POST /inference).
type Whisper struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// WhisperOption is a functional option for Whisper.
type WhisperOption func(*Whisper)

// WithWhisperLanguage sets the spoken language hint, e.g. "vi".
func WithWhisperLanguage(lang string) WhisperOption {
	return func(w *Whisper) {
		w.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) WhisperOption {
	return func(w *Whisper) {
		w.httpClient = c
	}
}

// NewWhisper returns a Whisper transcriber for serverURL.
func NewWhisper(serverURL string, opts ...WhisperOption) (*Whisper, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	w := &Whisper{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Transcribe implements quiz.Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte) (string, error) {
	text, err := w.infer(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("%w: %w", quiz.ErrTranscriptionFailed, err)
	}
	return text, nil
}

func (w *Whisper) infer(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("whisper: no audio captured")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if w.language != "" {
		if err := mw.WriteField("language", w.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
