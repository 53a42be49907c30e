// Package trec parses the TREC topic and qrels formats the benchmark
// consumes.
package trec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Topic is one search task, reduced to its number and title.
type Topic struct {
	ID    string
	Title string
}

// ParseTopics reads SGML-like <top> blocks and extracts <num> and <title>.
// Both tag-on-own-line and inline value layouts occur in the wild; either
// works. Titles spanning multiple lines are joined with spaces.
func ParseTopics(r io.Reader) ([]Topic, error) {
	var topics []Topic
	var current *Topic
	var inTitle bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "<top>"):
			current = &Topic{}
			inTitle = false
		case strings.HasPrefix(line, "</top>"):
			if current != nil && current.ID != "" {
				current.Title = strings.TrimSpace(current.Title)
				topics = append(topics, *current)
			}
			current = nil
			inTitle = false
		case current == nil:
			continue
		case strings.HasPrefix(line, "<num>"):
			value := strings.TrimPrefix(line, "<num>")
			value = strings.TrimSuffix(value, "</num>")
			value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "Number:"))
			current.ID = strings.TrimSpace(value)
			inTitle = false
		case strings.HasPrefix(line, "<title>"):
			value := strings.TrimPrefix(line, "<title>")
			value = strings.TrimSuffix(value, "</title>")
			current.Title = strings.TrimSpace(value)
			inTitle = true
		case strings.HasPrefix(line, "<"):
			inTitle = false
		case inTitle && line != "":
			current.Title += " " + line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading topics: %w", err)
	}
	return topics, nil
}

// LoadTopics reads a topic file from disk.
func LoadTopics(path string) ([]Topic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening topics %s: %w", path, err)
	}
	defer f.Close()
	return ParseTopics(f)
}
