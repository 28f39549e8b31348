package text

import (
	"strings"
	"unicode/utf8"
)

// ChunkBySentence splits text at sentence boundaries (., !, ?) and packs
// consecutive sentences into chunks of at most maxChars runes, so each chunk
// stays inside the embedding model's sequence limit.
// If maxChars is 0, no splitting is performed.
// A sentence longer than maxChars is kept intact as its own chunk.
func ChunkBySentence(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if currentLen == 0 {
			current.WriteString(s)
			currentLen = n
			continue
		}
		if currentLen+1+n > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(s)
			currentLen = n
		} else {
			current.WriteByte(' ')
			current.WriteString(s)
			currentLen += 1 + n
		}
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitSentences splits text on sentence-ending punctuation, keeping the
// terminator attached to its sentence. Empty segments are dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}

	if start < len(text) {
		s := strings.TrimSpace(text[start:])
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}
