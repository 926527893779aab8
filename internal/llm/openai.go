package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an OpenAI-compatible endpoint.
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	JSONMode    bool
}

// OpenAIClient talks to any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	temp     float32
	jsonMode bool
	log      zerolog.Logger
}

// NewOpenAIClient builds a client for opts.
func NewOpenAIClient(opts OpenAIOptions, log zerolog.Logger) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: api key not set")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("openai: model not set")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	log.Info().Str("model", opts.Model).Str("base_url", cfg.BaseURL).Msg("initializing chat client")
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		temp:     opts.Temperature,
		jsonMode: opts.JSONMode,
		log:      log,
	}, nil
}

// Complete implements Completer.
func (o *OpenAIClient) Complete(ctx context.Context, msgs []Message) (string, error) {
	o.log.Debug().Str("model", o.model).Int("messages", len(msgs)).Msg("chat completion")
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    make([]openai.ChatCompletionMessage, len(msgs)),
		Temperature: o.temp,
	}
	for i, m := range msgs {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if o.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	o.log.Debug().Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("chat completion done")
	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAIClient)(nil)
