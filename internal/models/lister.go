package models

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// maxChatModels caps the chat section before it is summarized.
const maxChatModels = 10

// Lister handles listing available models
type Lister struct {
	apiKey  string
	baseURL string
	client  *openai.Client
}

// NewLister creates a new model lister for the endpoint at baseURL. An
// empty baseURL uses the OpenAI default.
func NewLister(apiKey, baseURL string) *Lister {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Lister{
		apiKey:  apiKey,
		baseURL: cfg.BaseURL,
		client:  openai.NewClientWithConfig(cfg),
	}
}

// Categories are model IDs grouped by what they can be used for.
type Categories struct {
	Chat   []string
	Speech []string
	Other  []string
}

// Categorize sorts model IDs into chat, speech and other models.
func Categorize(ids []string) Categories {
	var c Categories
	for _, id := range ids {
		lower := strings.ToLower(id)
		switch {
		case strings.Contains(lower, "whisper"), strings.Contains(lower, "tts"), strings.Contains(lower, "audio"):
			c.Speech = append(c.Speech, id)
		case strings.Contains(lower, "guard"), strings.Contains(lower, "embed"), strings.Contains(lower, "dall-e"):
			c.Other = append(c.Other, id)
		case strings.Contains(lower, "llama"), strings.Contains(lower, "gpt"), strings.Contains(lower, "gemma"),
			strings.Contains(lower, "mixtral"), strings.Contains(lower, "qwen"), strings.Contains(lower, "chat"):
			c.Chat = append(c.Chat, id)
		default:
			c.Other = append(c.Other, id)
		}
	}
	sort.Strings(c.Chat)
	sort.Strings(c.Speech)
	sort.Strings(c.Other)
	return c
}

// ListAvailableModels writes the available models, categorized by type,
// to w.
func (l *Lister) ListAvailableModels(ctx context.Context, w io.Writer) error {
	if l.apiKey == "" {
		return fmt.Errorf("API key not found. Set GROQ_API_KEY or OPENAI_API_KEY, or providers.openai.api_key in .translateassist.yaml")
	}

	models, err := l.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	c := Categorize(ids)

	fmt.Fprintf(w, "Available models at %s:\n", l.baseURL)

	fmt.Fprintln(w, "\nChat models (usable for translation decisions):")
	switch {
	case len(c.Chat) == 0:
		fmt.Fprintln(w, "  No chat models found")
	case len(c.Chat) > maxChatModels:
		for _, model := range c.Chat[:maxChatModels] {
			fmt.Fprintf(w, "  %s\n", model)
		}
		fmt.Fprintf(w, "  ... and %d more models\n", len(c.Chat)-maxChatModels)
	default:
		for _, model := range c.Chat {
			fmt.Fprintf(w, "  %s\n", model)
		}
	}

	fmt.Fprintln(w, "\nSpeech models:")
	if len(c.Speech) == 0 {
		fmt.Fprintln(w, "  No speech models found")
	}
	for _, model := range c.Speech {
		fmt.Fprintf(w, "  %s\n", model)
	}

	if len(c.Other) > 0 {
		fmt.Fprintln(w, "\nOther models:")
		for _, model := range c.Other {
			fmt.Fprintf(w, "  %s\n", model)
		}
	}

	return nil
}
