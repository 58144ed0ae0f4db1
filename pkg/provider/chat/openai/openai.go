// Package openai provides a chat Responder backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/auriclehq/auricle/pkg/types"
)

// defaultSystemPrompt keeps replies short enough to read aloud.
const defaultSystemPrompt = "你是一个友好的语音助手。回答要简洁自然，适合直接朗读给用户听。"

// Responder implements chat.Responder using the OpenAI chat completions API.
type Responder struct {
	client       oai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// config holds optional configuration for the Responder.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// Option is a functional option for Responder.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to talk to
// OpenAI-compatible servers such as vLLM or llama.cpp.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithSystemPrompt replaces the default voice-assistant system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// New constructs a new OpenAI chat Responder.
func New(apiKey string, model string, opts ...Option) (*Responder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{systemPrompt: defaultSystemPrompt}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Responder{
		client:       client,
		model:        model,
		systemPrompt: cfg.systemPrompt,
		temperature:  cfg.temperature,
		maxTokens:    cfg.maxTokens,
	}, nil
}

// Respond implements chat.Responder.
func (r *Responder) Respond(ctx context.Context, text string, history []types.Turn) (string, error) {
	params := r.buildParams(text, history)

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildParams converts the utterance and history into OpenAI request params.
func (r *Responder) buildParams(text string, history []types.Turn) oai.ChatCompletionNewParams {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(history)+2)

	if r.systemPrompt != "" {
		messages = append(messages, oai.SystemMessage(r.systemPrompt))
	}
	for _, turn := range history {
		messages = append(messages, convertTurn(turn))
	}
	messages = append(messages, oai.UserMessage(text))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(r.model),
		Messages: messages,
	}
	if r.temperature != 0 {
		params.Temperature = param.NewOpt(r.temperature)
	}
	if r.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(r.maxTokens))
	}
	return params
}

// convertTurn converts one dialogue turn into an OpenAI message.
func convertTurn(turn types.Turn) oai.ChatCompletionMessageParamUnion {
	switch turn.Role {
	case types.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		if turn.Content != "" {
			asst.Content.OfString = oai.String(turn.Content)
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	case types.RoleSystem:
		return oai.SystemMessage(turn.Content)
	default:
		return oai.UserMessage(turn.Content)
	}
}
