package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/snonux/translateassist/internal/translation"
)

var errNoJSON = errors.New("no JSON object in model output")

// extractJSON returns the JSON object inside model output, unwrapping
// code fences and surrounding prose.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, nil
	}
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return "", errNoJSON
	}
	return s[i : j+1], nil
}

// DecodeDecision parses and validates a decision from raw model output.
func DecodeDecision(content string) (*translation.Decision, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var d translation.Decision
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode decision: %w", err)
	}
	if d.Version == "" {
		d.Version = translation.DecisionVersion
	}
	if d.Warnings == nil {
		d.Warnings = []string{}
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision: %w", err)
	}
	return &d, nil
}
