package translation

import (
	"strings"
	"testing"
)

func TestDecisionValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{"valid mt", Decision{Decision: DecisionMT, TopIndex: 1, Confidence: 0.9}, false},
		{"valid rewrite", Decision{Decision: DecisionRewrite, Rewrite: "x", Confidence: 0}, false},
		{"valid reject", Decision{Decision: DecisionReject, Confidence: 1}, false},
		{"unknown kind", Decision{Decision: "maybe", Confidence: 0.5}, true},
		{"negative index", Decision{Decision: DecisionMT, TopIndex: -1, Confidence: 0.5}, true},
		{"confidence too high", Decision{Decision: DecisionMT, Confidence: 1.2}, true},
		{"confidence negative", Decision{Decision: DecisionMT, Confidence: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecisionChoose(t *testing.T) {
	cands := []SenseCandidate{{Text: "سلام دنیا"}, {Text: "درود بر جهان"}}

	tests := []struct {
		name      string
		d         Decision
		wantText  string
		wantIndex int
	}{
		{"mt picks index", Decision{Decision: DecisionMT, TopIndex: 1}, "درود بر جهان", 1},
		{"rewrite wins", Decision{Decision: DecisionRewrite, TopIndex: 0, Rewrite: " سلام "}, "سلام", 0},
		{"empty rewrite falls back to index", Decision{Decision: DecisionRewrite, TopIndex: 1, Rewrite: "  "}, "درود بر جهان", 1},
		{"out of range falls back to first", Decision{Decision: DecisionMT, TopIndex: 7}, "سلام دنیا", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, idx := tt.d.Choose(cands)
			if text != tt.wantText || idx != tt.wantIndex {
				t.Errorf("Choose() = (%q, %d), want (%q, %d)", text, idx, tt.wantText, tt.wantIndex)
			}
		})
	}

	d := Decision{Decision: DecisionMT}
	if text, idx := d.Choose(nil); text != "" || idx != 0 {
		t.Errorf("Choose(nil) = (%q, %d), want empty", text, idx)
	}
}

func TestValidateInput(t *testing.T) {
	if err := ValidateInput("model", "", ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Limits count runes, not bytes.
	if err := ValidateInput(strings.Repeat("م", MaxTermLength), "", ""); err != nil {
		t.Errorf("term at limit rejected: %v", err)
	}
	if err := ValidateInput(strings.Repeat("a", MaxTermLength+1), "", ""); err == nil {
		t.Error("expected error for long term")
	}
	if err := ValidateInput("x", strings.Repeat("a", MaxContextLength+1), ""); err == nil {
		t.Error("expected error for long context")
	}
	if err := ValidateInput("x", "", strings.Repeat("a", MaxPersonaLength+1)); err == nil {
		t.Error("expected error for long persona")
	}
}

func TestMTResultTexts(t *testing.T) {
	r := &MTResult{Candidates: []SenseCandidate{{Text: "a"}, {Text: "b"}}}
	got := r.Texts()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Texts() = %v", got)
	}
}
