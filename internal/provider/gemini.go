package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/netclient"
)

// DefaultGeminiModel is the fast model used for primary decisions.
const DefaultGeminiModel = "gemini-2.0-flash-lite"

// GeminiGenerator implements Generator with the Gemini API.
type GeminiGenerator struct {
	apiKey string
	model  string
	client *genai.Client
}

// GeminiOption configures the underlying genai client.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithGeminiHTTPClient sets the HTTP client, e.g. to bound request time.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPClient = c
	}
}

// NewGeminiGenerator creates a generator for model. Without an API key no
// client is built and every call reports missing credentials.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &GeminiGenerator{apiKey: apiKey, model: model}
	if apiKey == "" {
		return g, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Available implements Generator.
func (g *GeminiGenerator) Available() error {
	if g.client == nil {
		return apperr.MissingCredentials("Gemini")
	}
	return nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if err := g.Available(); err != nil {
		return "", err
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", geminiError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		// The repair prompt gets a chance with an empty object.
		return "{}", nil
	}
	return text, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &netclient.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &netclient.StatusError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return netclient.ClassifyTransport(err)
}
