package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/netclient"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// DefaultTatoebaURL is the public Tatoeba API root.
const DefaultTatoebaURL = "https://tatoeba.org/en/api_v0"

// MaxExamples is the number of examples returned per search.
const MaxExamples = 3

// tatoebaLangs maps ISO 639-1 codes to the ISO 639-3 codes Tatoeba uses.
var tatoebaLangs = map[string]string{
	"en": "eng",
	"es": "spa",
	"zh": "cmn",
	"hi": "hin",
	"ar": "ara",
	"fa": "fas",
}

func tatoebaLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if mapped, ok := tatoebaLangs[code]; ok {
		return mapped
	}
	return code
}

// TatoebaSearcher implements translation.ExampleSearcher. Repeated
// failures trip a local breaker so an unreachable Tatoeba costs nothing.
type TatoebaSearcher struct {
	baseURL string
	client  *netclient.Client
	breaker *gobreaker.CircuitBreaker
}

// NewTatoebaSearcher creates a searcher. An empty baseURL uses
// DefaultTatoebaURL.
func NewTatoebaSearcher(baseURL string, client *netclient.Client, logger *slog.Logger) *TatoebaSearcher {
	if baseURL == "" {
		baseURL = DefaultTatoebaURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "tatoeba",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &TatoebaSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

type tatoebaTranslation struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

type tatoebaResult struct {
	Text         string          `json:"text"`
	Translations json.RawMessage `json:"translations"`
}

type tatoebaResponse struct {
	Results []tatoebaResult `json:"results"`
}

// translations flattens both the grouped ([[...], [...]]) and the flat
// ([...]) shapes of the translations field.
func (r tatoebaResult) translations() []tatoebaTranslation {
	var grouped [][]tatoebaTranslation
	if err := json.Unmarshal(r.Translations, &grouped); err == nil {
		var out []tatoebaTranslation
		for _, g := range grouped {
			out = append(out, g...)
		}
		return out
	}
	var flat []tatoebaTranslation
	if err := json.Unmarshal(r.Translations, &flat); err == nil {
		return flat
	}
	return nil
}

// Search implements translation.ExampleSearcher.
func (s *TatoebaSearcher) Search(ctx context.Context, term, source, target, contextText string) ([]translation.Example, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.search(ctx, term, source, target)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.Unavailable("Tatoeba", err)
		}
		return nil, err
	}
	return out.([]translation.Example), nil
}

func (s *TatoebaSearcher) search(ctx context.Context, term, source, target string) ([]translation.Example, error) {
	var decoded tatoebaResponse
	req := s.client.R(ctx).
		SetQueryParams(map[string]string{
			"query": term,
			"from":  tatoebaLang(source),
			"to":    tatoebaLang(target),
			"sort":  "relevance",
		}).
		SetResult(&decoded)
	if _, err := s.client.Do(req, http.MethodGet, s.baseURL+"/search"); err != nil {
		return nil, err
	}

	want := tatoebaLang(target)
	examples := []translation.Example{}
	for _, r := range decoded.Results {
		if r.Text == "" {
			continue
		}
		for _, t := range r.translations() {
			if strings.ToLower(t.Lang) != want || t.Text == "" {
				continue
			}
			examples = append(examples, translation.Example{Source: r.Text, Target: t.Text, Provenance: "tatoeba"})
			if len(examples) >= MaxExamples {
				return examples, nil
			}
		}
	}
	return examples, nil
}
