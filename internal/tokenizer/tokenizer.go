// Package tokenizer splits normalized text into subword tokens for the
// alignment builder and the embedding model. Both consumers must use the same
// Tokenizer so that per-token phoneme counts line up with model positions.
package tokenizer

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptyPath is returned when a tokenizer is opened with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// Token is one subword unit. Text never carries the tokenizer's continuation
// or word-start marker; Continuation says whether the token extends the
// previous one into the same word.
type Token struct {
	Text         string
	ID           int64
	Continuation bool
	Unknown      bool
}

// Tokenizer encodes text into subword tokens.
type Tokenizer interface {
	// Tokenize returns the subword tokens of text without special tokens.
	Tokenize(text string) ([]Token, error)
	// EncodeIDs returns model input ids, including the sentence boundary
	// special tokens the embedding model expects.
	EncodeIDs(text string) ([]int64, error)
}

// Options controls how Open builds a tokenizer.
type Options struct {
	// Lowercase lowercases and strips accents before WordPiece lookup.
	// Leave false for cased vocabularies such as bert-base-multilingual-cased.
	Lowercase bool
}

// Open loads a tokenizer from path. Files ending in .model are SentencePiece
// protos; anything else is a WordPiece vocab.txt or a tokenizer.json.
func Open(path string, opts Options) (Tokenizer, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if strings.EqualFold(filepath.Ext(path), ".model") {
		return NewSentencePiece(path, SentencePieceOptions{Lowercase: opts.Lowercase})
	}

	return LoadWordPiece(path, WordPieceOptions{Lowercase: opts.Lowercase})
}

// GroupWords splits tokens into word groups: each group starts with a
// non-continuation token and absorbs the continuation tokens that follow.
// A leading continuation token opens its own group.
func GroupWords(tokens []Token) [][]Token {
	var groups [][]Token

	for _, tok := range tokens {
		if tok.Continuation && len(groups) > 0 {
			last := len(groups) - 1
			groups[last] = append(groups[last], tok)
			continue
		}
		groups = append(groups, []Token{tok})
	}

	return groups
}

// Word reconstitutes the word spelled by a group.
func Word(group []Token) string {
	if len(group) == 1 {
		return group[0].Text
	}

	var b strings.Builder
	for _, tok := range group {
		b.WriteString(tok.Text)
	}

	return b.String()
}

// IsUnknown reports whether a group spells nothing but unknown tokens. A
// SentencePiece group may lead with a bare word-start piece of empty text.
func IsUnknown(group []Token) bool {
	unknown := false
	for _, tok := range group {
		switch {
		case tok.Unknown:
			unknown = true
		case tok.Text != "":
			return false
		}
	}
	return unknown
}
