// Package wordpiece implements the BERT-style WordPiece tokenizer used to
// encode query/document pairs for the cross-encoder. The vocabulary file has
// one token per line; subword continuations carry the "##" prefix.
package wordpiece

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxInputCharsPerWord = 100

// Tokenizer holds the vocabulary and the special-token ids.
type Tokenizer struct {
	vocab map[string]int64
	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// Load reads a vocabulary file, assigning ids in line order. The special
// tokens fall back to the standard BERT ids when absent from the file.
func Load(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary %s: %w", path, err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var idx int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), " \t\r\n")
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}

	t := &Tokenizer{
		vocab: vocab,
		clsID: idOr(vocab, "[CLS]", 101),
		sepID: idOr(vocab, "[SEP]", 102),
		padID: idOr(vocab, "[PAD]", 0),
		unkID: idOr(vocab, "[UNK]", 100),
	}
	slog.Default().With("component", "wordpiece").Info("vocabulary loaded",
		"path", path,
		"tokens", len(vocab),
	)
	return t, nil
}

func idOr(vocab map[string]int64, token string, fallback int64) int64 {
	if id, ok := vocab[token]; ok {
		return id
	}
	return fallback
}

func isPunct(c byte) bool {
	return (c >= 33 && c <= 47) || (c >= 58 && c <= 64) || (c >= 91 && c <= 96) || (c >= 123 && c <= 126)
}

// basicTokenize lowercases, normalises whitespace, and splits punctuation
// into single-character tokens.
func basicTokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		switch {
		case c == ' ' || c == '\n' || c == '\r' || c == '\t':
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case isPunct(c):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(c))
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// wordpieceTokenize greedily matches the longest vocabulary prefix; pieces
// after the first carry the "##" prefix. Unmatchable words map to [UNK].
func (t *Tokenizer) wordpieceTokenize(word string) []string {
	if len(word) > maxInputCharsPerWord {
		return []string{"[UNK]"}
	}
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		var piece string
		found := false
		for start < end {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				piece = sub
				found = true
				break
			}
			end--
		}
		if !found {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, piece)
		start = end
	}
	return pieces
}

// Tokenize splits text into WordPiece tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	var out []string
	for _, word := range basicTokenize(text) {
		out = append(out, t.wordpieceTokenize(word)...)
	}
	return out
}

func (t *Tokenizer) tokenIDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		if id, ok := t.vocab[tok]; ok {
			ids[i] = id
		} else {
			ids[i] = t.unkID
		}
	}
	return ids
}

// EncodePair encodes "[CLS] query [SEP] document [SEP]" into aligned
// input-id and attention-mask slices of exactly maxLen. The document is
// truncated to fit; the query keeps priority.
func (t *Tokenizer) EncodePair(query, document string, maxLen int) (inputIDs, attentionMask []int64) {
	if maxLen < 3 {
		// Window too small for [CLS] [SEP] [SEP]; all padding.
		ids := make([]int64, maxLen)
		for i := range ids {
			ids[i] = t.padID
		}
		return ids, make([]int64, maxLen)
	}
	queryIDs := t.tokenIDs(t.Tokenize(query))
	docIDs := t.tokenIDs(t.Tokenize(document))

	maxContent := maxLen - 3
	if len(queryIDs) > maxContent {
		queryIDs = queryIDs[:maxContent]
	}
	if len(queryIDs)+len(docIDs) > maxContent {
		docIDs = docIDs[:maxContent-len(queryIDs)]
	}

	inputIDs = make([]int64, maxLen)
	attentionMask = make([]int64, maxLen)
	pos := 0
	put := func(id int64) {
		inputIDs[pos] = id
		attentionMask[pos] = 1
		pos++
	}
	put(t.clsID)
	for _, id := range queryIDs {
		put(id)
	}
	put(t.sepID)
	for _, id := range docIDs {
		put(id)
	}
	put(t.sepID)
	for ; pos < maxLen; pos++ {
		inputIDs[pos] = t.padID
	}
	return inputIDs, attentionMask
}

// VocabSize returns the number of vocabulary entries.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}
