package trec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cascadeir/cascade/internal/evaluation"
)

// ParseQrels reads the TREC 4-column qrels format `qid 0 docname rel` and
// keeps judgments with rel > 0. Document names resolve to internal ids via
// nameToID; names missing from the corpus are skipped.
func ParseQrels(r io.Reader, nameToID map[string]uint32) (evaluation.Judgments, error) {
	judgments := make(evaluation.Judgments)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("qrels line %d: want 4 fields, got %d", lineNum, len(fields))
		}
		rel, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("qrels line %d: bad relevance %q: %w", lineNum, fields[3], err)
		}
		if rel <= 0 {
			continue
		}
		id, ok := nameToID[fields[2]]
		if !ok {
			continue
		}
		qid := fields[0]
		if judgments[qid] == nil {
			judgments[qid] = make(map[uint32]bool)
		}
		judgments[qid][id] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading qrels: %w", err)
	}
	return judgments, nil
}

// LoadQrels reads a qrels file from disk.
func LoadQrels(path string, nameToID map[string]uint32) (evaluation.Judgments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening qrels %s: %w", path, err)
	}
	defer f.Close()
	return ParseQrels(f, nameToID)
}
