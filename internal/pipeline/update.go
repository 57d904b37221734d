package pipeline

import (
	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// UpdateKind tags an Update.
type UpdateKind int

const (
	UpdateMT UpdateKind = iota
	UpdateDecision
	UpdateExamples
	UpdateFinal
	UpdateNotice
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateMT:
		return "mtReady"
	case UpdateDecision:
		return "decisionReady"
	case UpdateExamples:
		return "examplesReady"
	case UpdateFinal:
		return "final"
	case UpdateNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Update is one progress event. Only the field matching Kind is set.
type Update struct {
	Kind     UpdateKind
	MT       *translation.MTResult
	Decision *translation.Decision
	Examples []translation.Example
	Outcome  *Outcome
	Notice   string
	// Err is the classified failure behind a notice, if any.
	Err *apperr.Error
}

// Outcome is the result of a request.
type Outcome struct {
	Term         string   `json:"term"`
	Source       string   `json:"src"`
	Target       string   `json:"dst"`
	Context      string   `json:"context,omitempty"`
	Chosen       string   `json:"chosen"`
	Alternatives []string `json:"alternatives"`
	Explanation  string   `json:"explanation"`
	Confidence   float64  `json:"confidence"`
}

// Request is the input of Orchestrator.Translate. An empty Source asks MT
// to detect the language.
type Request struct {
	Term    string
	Source  string
	Target  string
	Context string
	Persona string
	// Domains orders glossary domains by preference.
	Domains []string
}

// buildOutcome picks the chosen text from dec and lists every other
// candidate as an alternative, in MT order.
func buildOutcome(req Request, source string, cands []translation.SenseCandidate, dec *translation.Decision) *Outcome {
	chosen, idx := dec.Choose(cands)
	alts := make([]string, 0, len(cands))
	for i, c := range cands {
		if i != idx {
			alts = append(alts, c.Text)
		}
	}
	return &Outcome{
		Term:         req.Term,
		Source:       source,
		Target:       req.Target,
		Context:      req.Context,
		Chosen:       chosen,
		Alternatives: alts,
		Explanation:  dec.Explanation,
		Confidence:   dec.Confidence,
	}
}

// fallbackDecision stands in for a failed decision call.
func fallbackDecision() *translation.Decision {
	return &translation.Decision{
		Version:     translation.DecisionVersion,
		Decision:    translation.DecisionMT,
		TopIndex:    0,
		Explanation: "MT only",
		Confidence:  0.5,
		Warnings:    []string{},
	}
}
