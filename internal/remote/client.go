// Package remote talks to the quiz backend HTTP API.
//
// Endpoints:
//
//	GET  /random-question                -> {"id", "question", "answer"}
//	POST /evaluate   {question_id, answer} -> {"score", "feedback"}
//	POST /transcribe multipart audio_file  -> {"transcription"}
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

// DefaultURL is the backend address used when none is configured.
const DefaultURL = "http://localhost:8000"

// Client implements quiz.QuestionProvider, quiz.Evaluator and quiz.Transcriber
// against the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New returns a Client for baseURL, or DefaultURL when empty.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type questionResponse struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type evaluateRequest struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

type evaluateResponse struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

// FetchRandomQuestion implements quiz.QuestionProvider.
func (c *Client) FetchRandomQuestion(ctx context.Context) (model.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/random-question", nil)
	if err != nil {
		return model.Question{}, fmt.Errorf("%w: remote: create request: %w", quiz.ErrProviderUnavailable, err)
	}
	var out questionResponse
	if err := c.do(req, &out); err != nil {
		return model.Question{}, fmt.Errorf("%w: %w", quiz.ErrProviderUnavailable, err)
	}
	return model.Question{ID: out.ID, Prompt: out.Question, ExpectedAnswer: out.Answer}, nil
}

// LookupQuestion fetches one question by id.
func (c *Client) LookupQuestion(ctx context.Context, id int64) (model.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/questions/%d", c.baseURL, id), nil)
	if err != nil {
		return model.Question{}, fmt.Errorf("remote: create request: %w", err)
	}
	var out questionResponse
	if err := c.do(req, &out); err != nil {
		return model.Question{}, err
	}
	return model.Question{ID: out.ID, Prompt: out.Question, ExpectedAnswer: out.Answer}, nil
}

// Evaluate implements quiz.Evaluator.
func (c *Client) Evaluate(ctx context.Context, questionID int64, answer string) (model.Evaluation, error) {
	payload, err := json.Marshal(evaluateRequest{QuestionID: questionID, Answer: answer})
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("%w: remote: encode request: %w", quiz.ErrEvaluationFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(payload))
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("%w: remote: create request: %w", quiz.ErrEvaluationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	var out evaluateResponse
	if err := c.do(req, &out); err != nil {
		return model.Evaluation{}, fmt.Errorf("%w: %w", quiz.ErrEvaluationFailed, err)
	}
	score := int(math.Round(out.Score))
	score = max(0, min(100, score))
	return model.Evaluation{Score: score, Feedback: out.Feedback}, nil
}

// Transcribe implements quiz.Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	text, err := c.transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("%w: %w", quiz.ErrTranscriptionFailed, err)
	}
	return text, nil
}

func (c *Client) transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("remote: no audio captured")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio_file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("remote: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("remote: write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("remote: close multipart writer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out transcribeResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Transcription), nil
}

// do sends req and decodes a JSON body into out. Non-2xx responses become
// errors carrying the backend's "detail" message when present.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
			return fmt.Errorf("remote: %s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("remote: %s %s: HTTP %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("remote: parse JSON response: %w", err)
	}
	return nil
}
