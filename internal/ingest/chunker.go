package ingest

import (
	"strings"
	"unicode"
)

// SplitChunks breaks cleaned page text into overlapping windows. Boundaries
// prefer sentence ends so chunks stay readable for retrieval prompts.
func SplitChunks(text string, size, overlap int) []string {
	if size <= 0 {
		size = 900
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	runes := []rune(collapseWhitespace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := sentenceCut(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// sentenceCut scans backwards from end for a sentence boundary, falling back
// to a word boundary, then to the hard cut.
func sentenceCut(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
