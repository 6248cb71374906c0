// Package evaluator grades answers with an OpenAI chat model.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = "You grade spoken answers to trivia questions. Be lenient: accept answers " +
	"that are close to the expected answer, including minor misspellings, transcription " +
	"errors and missing diacritics. Reply with a JSON object with an integer \"score\" " +
	"from 0 to 100 and a short \"feedback\" string."

// QuestionLookup resolves a question id to its prompt and expected answer.
type QuestionLookup interface {
	LookupQuestion(ctx context.Context, id int64) (model.Question, error)
}

// Evaluator implements quiz.Evaluator using the chat completions API.
type Evaluator struct {
	client   oai.Client
	model    string
	language string
	lookup   QuestionLookup
}

type config struct {
	baseURL    string
	language   string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Evaluator.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage asks for feedback written in lang.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs an Evaluator. lookup supplies the question text for an id.
func New(apiKey, model string, lookup QuestionLookup, opts ...Option) (*Evaluator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty (set OPENAI_API_KEY)")
	}
	if lookup == nil {
		return nil, errors.New("openai: question lookup must not be nil")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Evaluator{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
		lookup:   lookup,
	}, nil
}

// Evaluate implements quiz.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, questionID int64, answer string) (model.Evaluation, error) {
	q, err := e.lookup.LookupQuestion(ctx, questionID)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("%w: lookup question: %w", quiz.ErrEvaluationFailed, err)
	}
	eval, err := e.grade(ctx, q, answer)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("%w: %w", quiz.ErrEvaluationFailed, err)
	}
	return eval, nil
}

func (e *Evaluator) grade(ctx context.Context, q model.Question, answer string) (model.Evaluation, error) {
	params := e.buildParams(q, answer)
	params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
	resp, err := e.client.Chat.Completions.New(ctx, params)
	var apiErr *oai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		// Some models reject JSON mode; ask again without it.
		resp, err = e.client.Chat.Completions.New(ctx, e.buildParams(q, answer))
	}
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Evaluation{}, errors.New("openai: empty choices in response")
	}
	return parseEvaluation(resp.Choices[0].Message.Content)
}

func (e *Evaluator) buildParams(q model.Question, answer string) oai.ChatCompletionNewParams {
	system := systemPrompt
	if e.language != "" {
		system += " Write the feedback in " + e.language + "."
	}
	user := fmt.Sprintf("Question: %s\nExpected answer: %s\nStudent answer: %s\nGrade the answer and give feedback.",
		q.Prompt, q.ExpectedAnswer, answer)
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
	}
}

// parseEvaluation reads the model reply. The score may be a number or a
// numeric string and is clamped to 0..100.
func parseEvaluation(content string) (model.Evaluation, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var raw struct {
		Score    json.RawMessage `json:"score"`
		Feedback string          `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.Evaluation{}, fmt.Errorf("openai: parse evaluation: %w", err)
	}
	if len(raw.Score) == 0 {
		return model.Evaluation{}, errors.New("openai: evaluation has no score")
	}
	value, err := strconv.ParseFloat(strings.Trim(string(raw.Score), `"`), 64)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("openai: parse score %s: %w", raw.Score, err)
	}
	score := int(math.Round(value))
	score = max(0, min(100, score))
	return model.Evaluation{Score: score, Feedback: strings.TrimSpace(raw.Feedback)}, nil
}
