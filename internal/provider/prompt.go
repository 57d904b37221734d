package provider

import (
	"encoding/json"
	"strings"

	"codeberg.org/snonux/translateassist/internal/translation"
)

const decisionSchema = `You are a bilingual sense disambiguator. Pick the candidate translation that fits the context best, or rewrite it when none fits.
Output STRICT JSON only. No prose, no code fences.
JSON schema:
{
  "version": "1.0",
  "decision": "mt" | "rewrite" | "reject",
  "top_index": 0,
  "rewrite": "string|null",
  "explanation": "string",
  "confidence": 0.0,
  "warnings": ["string"]
}`

const repairSchema = `{"version":"1.0","decision":"mt|rewrite|reject","top_index":0,"rewrite":null,"explanation":"","confidence":0.0,"warnings":[""]}`

// DecisionPrompt renders the prompt asking a model for a Decision on in.
func DecisionPrompt(in translation.DecisionInput) string {
	if in.DomainPriority == nil {
		in.DomainPriority = []string{}
	}
	if in.Candidates == nil {
		in.Candidates = []translation.SenseCandidate{}
	}
	if in.GlossaryHits == nil {
		in.GlossaryHits = []translation.GlossaryHit{}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		payload = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("SYSTEM:\n")
	b.WriteString(decisionSchema)
	b.WriteString("\n\nUSER:\n")
	b.WriteString("Decide for the input JSON below (fields: term, src, dst, context, persona, domain_priority, candidates, glossary_hits).\n")
	b.WriteString("top_index points into candidates. Prefer glossary_hits of the first domain in domain_priority.\n")
	b.WriteString("Respond with the JSON object only. No markdown. No comments.\n")
	b.WriteString("Input:\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String()
}

// RepairPrompt asks a model to turn broken output into schema valid JSON.
func RepairPrompt(broken string) string {
	var b strings.Builder
	b.WriteString("SYSTEM: Repair to strict JSON per schema. Output JSON only, no markdown or prose.\n")
	b.WriteString("SCHEMA: ")
	b.WriteString(repairSchema)
	b.WriteString("\nBROKEN:\n")
	b.WriteString(broken)
	b.WriteString("\n")
	return b.String()
}
