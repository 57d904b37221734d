package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/snonux/translateassist/internal/batch"
	"codeberg.org/snonux/translateassist/internal/pipeline"
)

// Processor handles the main term processing logic
type Processor struct {
	orch     *pipeline.Orchestrator
	newReq   func(term, contextText string) pipeline.Request
	out      io.Writer
	jsonMode bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithOutput redirects progress output, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(p *Processor) { p.out = w }
}

// WithJSON prints every update as one JSON line instead of text.
func WithJSON(on bool) Option {
	return func(p *Processor) { p.jsonMode = on }
}

// NewProcessor creates a processor running requests on orch. newReq
// fills in languages, persona and domains for a term.
func NewProcessor(orch *pipeline.Orchestrator, newReq func(term, contextText string) pipeline.Request, opts ...Option) *Processor {
	p := &Processor{orch: orch, newReq: newReq, out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSingleTerm translates one term and prints updates as they
// arrive. It returns an error when no final result was produced.
func (p *Processor) ProcessSingleTerm(ctx context.Context, term, contextText string) error {
	req := p.newReq(term, contextText)
	if !p.jsonMode {
		fmt.Fprintf(p.out, "\nTranslating: %s (%s -> %s)\n", req.Term, orAuto(req.Source), req.Target)
	}

	stream := p.orch.Translate(ctx, req)
	defer stream.Cancel()

	var (
		finals int
		banner string
	)
	for u := range stream.Updates() {
		switch u.Kind {
		case pipeline.UpdateFinal:
			finals++
		case pipeline.UpdateNotice:
			banner = u.Notice
		}
		if p.jsonMode {
			if err := p.printJSON(u); err != nil {
				return err
			}
			continue
		}
		p.printUpdate(u, finals)
	}

	if finals == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if banner == "" {
			banner = "no result"
		}
		return fmt.Errorf("translation of '%s' failed: %s", term, banner)
	}
	return nil
}

// ProcessBatch translates every entry of file one after the other
func (p *Processor) ProcessBatch(ctx context.Context, file string) error {
	entries, err := batch.ReadBatchFile(file)
	if err != nil {
		return err
	}

	sess := pipeline.NewSession(p.orch)
	defer sess.Cancel()

	// Track statistics
	processedCount := 0
	errorCount := 0

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "\nProcessing %d/%d: %s\n", i+1, len(entries), entry.Term)

		sess.Start(ctx, p.newReq(entry.Term, entry.Context))
		sess.Wait()
		st := sess.State()

		if st.Chosen == "" {
			fmt.Fprintf(os.Stderr, "Error translating '%s': %s\n", entry.Term, orDefault(st.Banner, "no result"))
			errorCount++
			continue
		}
		processedCount++

		fmt.Fprintf(p.out, "  %s  (confidence %.2f)\n", st.Chosen, st.Confidence)
		if len(st.Alternatives) > 0 {
			fmt.Fprintf(p.out, "  also: %s\n", strings.Join(st.Alternatives, ", "))
		}
		if st.Banner != "" {
			fmt.Fprintf(p.out, "  ! %s\n", st.Banner)
		}
	}

	// Print summary
	fmt.Fprintf(p.out, "\n=== Batch Summary ===\n")
	fmt.Fprintf(p.out, "Total terms: %d\n", len(entries))
	fmt.Fprintf(p.out, "Translated: %d\n", processedCount)
	if errorCount > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", errorCount)
	}
	fmt.Fprintf(p.out, "=====================\n")

	return nil
}

func (p *Processor) printUpdate(u pipeline.Update, finals int) {
	switch u.Kind {
	case pipeline.UpdateMT:
		fmt.Fprintf(p.out, "  MT: %s\n", strings.Join(u.MT.Texts(), " | "))
	case pipeline.UpdateDecision:
		// Shown through the final outcome.
	case pipeline.UpdateFinal:
		o := u.Outcome
		label := "Result"
		if finals > 1 {
			label = "Updated result"
		}
		fmt.Fprintf(p.out, "  %s: %s  (confidence %.2f)\n", label, o.Chosen, o.Confidence)
		if o.Explanation != "" {
			fmt.Fprintf(p.out, "    %s\n", o.Explanation)
		}
		if len(o.Alternatives) > 0 {
			fmt.Fprintf(p.out, "    also: %s\n", strings.Join(o.Alternatives, ", "))
		}
	case pipeline.UpdateExamples:
		if len(u.Examples) == 0 {
			return
		}
		fmt.Fprintf(p.out, "  Examples:\n")
		for _, ex := range u.Examples {
			fmt.Fprintf(p.out, "    %s\n      %s\n", ex.Source, ex.Target)
		}
	case pipeline.UpdateNotice:
		fmt.Fprintf(p.out, "  ! %s\n", u.Notice)
	}
}

// jsonUpdate is the line format of --json.
type jsonUpdate struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
	Notice  string `json:"notice,omitempty"`
	ErrKind string `json:"error_kind,omitempty"`
}

func (p *Processor) printJSON(u pipeline.Update) error {
	line := jsonUpdate{Kind: u.Kind.String()}
	switch u.Kind {
	case pipeline.UpdateMT:
		line.Payload = u.MT
	case pipeline.UpdateDecision:
		line.Payload = u.Decision
	case pipeline.UpdateExamples:
		line.Payload = u.Examples
	case pipeline.UpdateFinal:
		line.Payload = u.Outcome
	case pipeline.UpdateNotice:
		line.Notice = u.Notice
		if u.Err != nil {
			line.ErrKind = string(u.Err.Kind)
		}
	}
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func orAuto(lang string) string {
	return orDefault(lang, "auto")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
