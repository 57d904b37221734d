package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"codeberg.org/snonux/translateassist/internal/translation"
)

const keyVersion = "v1"

// Cache tags keep primary and escalated decisions apart.
const (
	TagPrimary   = "primary"
	TagEscalated = "escalated"
)

const (
	unitSep   = "\x1f"
	recordSep = "\x1e"
)

// MTKey returns the cache key of an MT request. Term and language codes
// are compared after trimming, case folding and NFC normalization; the
// context is hashed verbatim and an empty context hashes as "none".
func MTKey(term, source, target, contextText string) string {
	base := strings.Join([]string{
		keyVersion,
		"mt",
		"src:" + normalize(source),
		"dst:" + normalize(target),
		"term:" + normalize(term),
		"ctx:" + optionalHash(contextText),
	}, "|")
	return sha256Hex(base)
}

// LLMKey returns the cache key of a decision request. The candidate set
// is part of the key; usage quotas are not.
func LLMKey(in translation.DecisionInput, tag string) string {
	base := strings.Join([]string{
		keyVersion,
		"llm",
		"src:" + normalize(in.Source),
		"dst:" + normalize(in.Target),
		"term:" + normalize(in.Term),
		"ctx:" + optionalHash(in.Context),
		"persona:" + optionalHash(in.Persona),
		"mt:" + hashCandidates(in.Candidates),
		"tag:" + tag,
	}, "|")
	return sha256Hex(base)
}

func normalize(s string) string {
	return norm.NFC.String(cases.Fold().String(strings.TrimSpace(s)))
}

func optionalHash(s string) string {
	if s == "" {
		return "none"
	}
	return sha256Hex(s)
}

func hashCandidates(cands []translation.SenseCandidate) string {
	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		parts = append(parts, strings.Join([]string{c.Text, c.POS, c.IPA, c.Provenance}, unitSep))
	}
	return sha256Hex(strings.Join(parts, recordSep))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
