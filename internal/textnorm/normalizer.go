// Package textnorm normalises document content and query text. The same
// normalisation runs at indexing and at query time; retrieval correctness
// depends on that symmetry.
package textnorm

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// defaultStopWords deliberately excludes "and", "or", and "not": those are
// Boolean operators and must survive normalisation.
var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {},
	"has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "will": {}, "with": {}, "what": {}, "when": {},
	"where": {}, "who": {}, "how": {}, "which": {}, "this": {},
	"these": {}, "those": {}, "can": {}, "could": {}, "do": {},
	"does": {}, "have": {}, "had": {}, "been": {}, "being": {},
	"would": {}, "should": {}, "may": {}, "might": {},
}

// Normalizer folds text to a canonical lowercase token stream with stop-words
// removed. It is idempotent: Normalize(Normalize(x)) == Normalize(x).
type Normalizer struct {
	stopWords map[string]struct{}
}

// New returns a Normalizer with the default stop-word set.
func New() *Normalizer {
	return &Normalizer{stopWords: defaultStopWords}
}

// NewFromFile returns a Normalizer whose stop-word set is read from a file,
// one word per line, '#' comments ignored. The Boolean operators are never
// stop-listed even if the file names them.
func NewFromFile(path string) (*Normalizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word file %s: %w", path, err)
	}
	defer f.Close()

	stops := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		if word == "and" || word == "or" || word == "not" {
			continue
		}
		stops[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-word file %s: %w", path, err)
	}
	return &Normalizer{stopWords: stops}, nil
}

// Normalize lowercases text, replaces every character outside [a-z0-9()] with
// a space, splits on whitespace, drops stop-words, and rejoins the survivors.
// Parentheses survive so Boolean grouping reaches the parser intact.
func (n *Normalizer) Normalize(text string) string {
	lowered := strings.ToLower(text)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '(' || r == ')' {
			return r
		}
		return ' '
	}, lowered)

	fields := strings.Fields(mapped)
	kept := fields[:0]
	for _, tok := range fields {
		if _, stop := n.stopWords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// IsStopWord reports whether the (already lowercased) word is stop-listed.
func (n *Normalizer) IsStopWord(word string) bool {
	_, ok := n.stopWords[word]
	return ok
}
