package translation

import (
	"fmt"
	"strings"
)

// DecisionVersion is the schema version requested from decision models.
const DecisionVersion = "1.0"

// SenseCandidate is one MT proposal.
type SenseCandidate struct {
	Text       string `json:"text"`
	POS        string `json:"pos,omitempty"`
	IPA        string `json:"ipa,omitempty"`
	Provenance string `json:"provenance"`
}

// Usage reports the quota a provider call consumed.
type Usage struct {
	Provider string `json:"provider"`
	Units    int    `json:"units"`
}

// MTResult is the answer of a Translator.
type MTResult struct {
	Candidates     []SenseCandidate `json:"candidates"`
	DetectedSource string           `json:"detected_src,omitempty"`
	Usage          Usage            `json:"usage"`
}

// Texts returns the candidate texts in order.
func (r *MTResult) Texts() []string {
	out := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Text)
	}
	return out
}

// GlossaryHit is a domain preferred translation.
type GlossaryHit struct {
	Term      string `json:"term"`
	Domain    string `json:"domain,omitempty"`
	Canonical string `json:"canonical"`
	Note      string `json:"note,omitempty"`
}

// DecisionKind is what the model decided to do with the candidates.
type DecisionKind string

const (
	DecisionMT      DecisionKind = "mt"
	DecisionRewrite DecisionKind = "rewrite"
	DecisionReject  DecisionKind = "reject"
)

// Decision is the structured answer of a decision model.
type Decision struct {
	Version     string       `json:"version"`
	Decision    DecisionKind `json:"decision"`
	TopIndex    int          `json:"top_index"`
	Rewrite     string       `json:"rewrite,omitempty"`
	Explanation string       `json:"explanation"`
	Confidence  float64      `json:"confidence"`
	Warnings    []string     `json:"warnings"`
}

// Validate checks the decision against the schema.
func (d *Decision) Validate() error {
	switch d.Decision {
	case DecisionMT, DecisionRewrite, DecisionReject:
	default:
		return fmt.Errorf("unknown decision %q", d.Decision)
	}
	if d.TopIndex < 0 {
		return fmt.Errorf("top_index must not be negative, got %d", d.TopIndex)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", d.Confidence)
	}
	return nil
}

// Choose returns the text the decision selects among cands and the index
// of the candidate it stands for. A non-empty rewrite wins; an out of
// range index falls back to the first candidate.
func (d *Decision) Choose(cands []SenseCandidate) (string, int) {
	if d.Decision == DecisionRewrite {
		if rw := strings.TrimSpace(d.Rewrite); rw != "" {
			return rw, d.TopIndex
		}
	}
	if d.TopIndex >= 0 && d.TopIndex < len(cands) {
		return cands[d.TopIndex].Text, d.TopIndex
	}
	if len(cands) == 0 {
		return "", 0
	}
	return cands[0].Text, 0
}

// DecisionInput bundles everything a decision model needs.
type DecisionInput struct {
	Term           string           `json:"term"`
	Source         string           `json:"src"`
	Target         string           `json:"dst"`
	Context        string           `json:"context,omitempty"`
	Persona        string           `json:"persona,omitempty"`
	DomainPriority []string         `json:"domain_priority"`
	Candidates     []SenseCandidate `json:"candidates"`
	GlossaryHits   []GlossaryHit    `json:"glossary_hits"`
}

// Example is a bilingual usage sentence.
type Example struct {
	Source     string `json:"src_text"`
	Target     string `json:"dst_text"`
	Provenance string `json:"provenance"`
}
