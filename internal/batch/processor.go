package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one term to translate with an optional context sentence
type Entry struct {
	Term    string
	Context string
}

// ReadBatchFile reads terms from a file and returns Entry slice
// Supports formats:
// - Term only: "bank"
// - With context: "bank | we sat on the river bank"
// Blank lines and lines starting with '#' are skipped.
func ReadBatchFile(filename string) ([]Entry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads batch entries from r
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		term, context, _ := strings.Cut(line, "|")
		term = strings.TrimSpace(term)
		if term == "" {
			// Context without a term cannot be translated
			continue
		}
		entries = append(entries, Entry{Term: term, Context: strings.TrimSpace(context)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	return entries, nil
}
