// Package ai wraps the OpenAI-compatible completions and embeddings APIs the
// pipeline plans and analyzes with. Consumers declare their own narrow
// interfaces over *Service.
package ai

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

type Service struct {
	client *openai.Client
	logger *log.Logger
}

func NewOpenAIService(logger *log.Logger, apiKey string, baseURL string) *Service {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Service{
		client: &client,
		logger: logger,
	}
}

// CompletionOption tweaks a single completion call.
type CompletionOption func(*completionOptions)

type completionOptions struct {
	temperature *float64
	maxTokens   *int64
}

func WithTemperature(t float64) CompletionOption {
	return func(o *completionOptions) { o.temperature = &t }
}

func WithMaxTokens(n int64) CompletionOption {
	return func(o *completionOptions) { o.maxTokens = &n }
}

// ParamsCompletions issues a raw chat completion and returns the first
// choice.
func (s *Service) ParamsCompletions(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletionMessage, error) {
	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("completions API returned no choices")
	}
	return completion.Choices[0].Message, nil
}

// Completions runs a plain chat completion.
func (s *Service) Completions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string, opts ...CompletionOption) (openai.ChatCompletionMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	applyOptions(&params, opts)
	return s.ParamsCompletions(ctx, params)
}

// CompletionJSON runs a chat completion in strict JSON-object response mode
// and returns the raw content string. Callers parse and validate.
func (s *Service) CompletionJSON(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, model string, opts ...CompletionOption) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	applyOptions(&params, opts)

	jsonObj := shared.NewResponseFormatJSONObjectParam()
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &jsonObj,
	}

	message, err := s.ParamsCompletions(ctx, params)
	if err != nil {
		return "", err
	}
	return message.Content, nil
}

func applyOptions(params *openai.ChatCompletionNewParams, opts []CompletionOption) {
	var options completionOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.temperature != nil {
		params.Temperature = param.NewOpt(*options.temperature)
	}
	if options.maxTokens != nil {
		params.MaxTokens = param.NewOpt(*options.maxTokens)
	}
}

// Embeddings embeds a batch of inputs.
func (s *Service) Embeddings(ctx context.Context, inputs []string, model string) ([][]float64, error) {
	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, err
	}
	var embeddings [][]float64
	for _, item := range resp.Data {
		embeddings = append(embeddings, item.Embedding)
	}
	return embeddings, nil
}

// Embedding embeds a single input.
func (s *Service) Embedding(ctx context.Context, input string, model string) ([]float64, error) {
	embeddings, err := s.Embeddings(ctx, []string{input}, model)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embeddings API returned no data")
	}
	return embeddings[0], nil
}
