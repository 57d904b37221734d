package provider

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"unicode/utf8"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/netclient"
	"codeberg.org/snonux/translateassist/internal/scheduler"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// GoogleTranslateURL is the v2 REST endpoint.
const GoogleTranslateURL = "https://translation.googleapis.com/language/translate/v2"

// GoogleTranslator implements translation.Translator with the Google
// Cloud Translation v2 API.
type GoogleTranslator struct {
	apiKey   string
	endpoint string
	client   *netclient.Client
	sched    *scheduler.Scheduler
}

// GoogleOption configures a GoogleTranslator.
type GoogleOption func(*GoogleTranslator)

// WithGoogleEndpoint overrides the API endpoint.
func WithGoogleEndpoint(url string) GoogleOption {
	return func(g *GoogleTranslator) {
		if url != "" {
			g.endpoint = url
		}
	}
}

// NewGoogleTranslator creates a translator. Calls fail with a missing
// credentials error while apiKey is empty.
func NewGoogleTranslator(apiKey string, client *netclient.Client, sched *scheduler.Scheduler, opts ...GoogleOption) *GoogleTranslator {
	g := &GoogleTranslator{
		apiKey:   apiKey,
		endpoint: GoogleTranslateURL,
		client:   client,
		sched:    sched,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type googleRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	Model  string   `json:"model"`
	Source string   `json:"source,omitempty"`
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate implements translation.Translator. The quota cost is the term
// length in runes.
func (g *GoogleTranslator) Translate(ctx context.Context, term, source, target, contextText string) (*translation.MTResult, error) {
	if g.apiKey == "" {
		return nil, apperr.MissingCredentials("Google Translate")
	}

	cost := max(utf8.RuneCountInString(term), 1)
	body := googleRequest{
		Q:      []string{term},
		Target: target,
		Format: "text",
		Model:  "nmt",
		Source: source,
	}

	decoded, err := scheduler.Schedule(ctx, g.sched, scheduler.MachineTranslator, cost,
		func(ctx context.Context) (*googleResponse, error) {
			var out googleResponse
			req := g.client.R(ctx).
				SetQueryParam("key", g.apiKey).
				SetHeader("Content-Type", "application/json").
				SetBody(body).
				SetResult(&out)
			if _, err := g.client.Do(req, http.MethodPost, g.endpoint); err != nil {
				return nil, err
			}
			return &out, nil
		})
	if err != nil {
		return nil, err
	}

	if len(decoded.Data.Translations) == 0 {
		return nil, apperr.InvalidResponse("Google Translate", fmt.Errorf("no translations returned"))
	}

	res := &translation.MTResult{
		DetectedSource: source,
		Usage:          translation.Usage{Provider: string(scheduler.MachineTranslator), Units: cost},
	}
	for _, t := range decoded.Data.Translations {
		text := strings.TrimSpace(html.UnescapeString(t.TranslatedText))
		if text == "" {
			continue
		}
		res.Candidates = append(res.Candidates, translation.SenseCandidate{Text: text, Provenance: "google"})
		if res.DetectedSource == "" && t.DetectedSourceLanguage != "" {
			res.DetectedSource = strings.ToLower(t.DetectedSourceLanguage)
		}
	}
	if len(res.Candidates) == 0 {
		return nil, apperr.InvalidResponse("Google Translate", fmt.Errorf("empty translation"))
	}
	return res, nil
}
