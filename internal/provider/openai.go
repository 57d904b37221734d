package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/netclient"
)

// Defaults for the escalation model, an OpenAI compatible endpoint.
const (
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel   = "llama-3.3-70b-versatile"
)

// OpenAIGenerator implements Generator with the chat completions API of
// any OpenAI compatible service.
type OpenAIGenerator struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses
// DefaultOpenAIBaseURL and timeout bounds each HTTP request.
func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAIGenerator{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Available implements Generator.
func (g *OpenAIGenerator) Available() error {
	if g.apiKey == "" {
		return apperr.MissingCredentials("OpenAI compatible LLM")
	}
	return nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if err := g.Available(); err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.InvalidResponse("OpenAI compatible LLM", fmt.Errorf("no choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &netclient.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &netclient.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return netclient.ClassifyTransport(err)
}
