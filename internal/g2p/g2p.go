// Package g2p builds the phoneme sequence, tone sequence and word2ph
// alignment for a normalized sentence.
package g2p

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-kreyol-tts/internal/phonemizer"
	"github.com/example/go-kreyol-tts/internal/tokenizer"
)

const (
	// UnknownPhone stands in for a word the phonemizer cannot pronounce.
	UnknownPhone = "UNK"
	// BoundaryPhone marks the sentence start and end tokens.
	BoundaryPhone = "_"
)

// ErrNilDependency is returned by NewBuilder when the tokenizer or phonemizer is nil.
var ErrNilDependency = errors.New("g2p builder requires a tokenizer and a phonemizer")

// Result is the aligned output of one G2P call. Tones holds 1 for phonemes
// with primary stress. Word2Ph has one entry per token, plus the two
// boundary tokens when padded, and sums to len(Phones).
type Result struct {
	Phones  []string `json:"phones"`
	Tones   []int    `json:"tones"`
	Word2Ph []int    `json:"word2ph"`
}

// G2POptions controls one G2P call.
type G2POptions struct {
	// PadStartEnd surrounds the output with boundary phones matching the
	// embedding model's sentence start and end tokens.
	PadStartEnd bool
	// Tokens, when non-nil, is used instead of tokenizing the text.
	Tokens []tokenizer.Token
}

// DefaultG2POptions returns the options used when a caller has no preference.
func DefaultG2POptions() G2POptions {
	return G2POptions{PadStartEnd: true}
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder aligns phonemes to subword tokens.
type Builder struct {
	tok    tokenizer.Tokenizer
	ph     phonemizer.Phonemizer
	logger *slog.Logger
}

// NewBuilder returns a Builder using tok for segmentation and ph for pronunciation.
func NewBuilder(tok tokenizer.Tokenizer, ph phonemizer.Phonemizer, opts ...Option) (*Builder, error) {
	if tok == nil || ph == nil {
		return nil, ErrNilDependency
	}

	b := &Builder{tok: tok, ph: ph, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}

	return b, nil
}

// G2P converts normalized text into phones, tones and word2ph. Either the
// whole result is produced or an error is returned.
func (b *Builder) G2P(text string, opts G2POptions) (Result, error) {
	tokens := opts.Tokens
	if tokens == nil {
		var err error
		tokens, err = b.tok.Tokenize(text)
		if err != nil {
			return Result{}, fmt.Errorf("tokenize %q: %w", text, err)
		}
	}

	groups := tokenizer.GroupWords(tokens)

	var res Result
	for _, group := range groups {
		phones, tones, err := b.phonemizeGroup(group)
		if err != nil {
			return Result{}, err
		}

		res.Phones = append(res.Phones, phones...)
		res.Tones = append(res.Tones, tones...)
		res.Word2Ph = append(res.Word2Ph, DistributePhones(len(phones), len(group))...)
	}

	if opts.PadStartEnd {
		res.Phones = pad(res.Phones, BoundaryPhone)
		res.Tones = pad(res.Tones, 0)
		res.Word2Ph = pad(res.Word2Ph, 1)
	}

	if res.Phones == nil {
		res = Result{Phones: []string{}, Tones: []int{}, Word2Ph: []int{}}
	}

	b.logger.Debug("g2p",
		"tokens", len(tokens),
		"words", len(groups),
		"phones", len(res.Phones),
		"pad", opts.PadStartEnd,
	)

	return res, nil
}

// phonemizeGroup always returns at least one phone.
func (b *Builder) phonemizeGroup(group []tokenizer.Token) ([]string, []int, error) {
	if tokenizer.IsUnknown(group) {
		return []string{UnknownPhone}, []int{0}, nil
	}

	word := tokenizer.Word(group)

	phonemes, err := b.ph.Phonemize(word)
	if err != nil {
		return nil, nil, fmt.Errorf("phonemize %q: %w", word, err)
	}

	phones := make([]string, 0, len(phonemes))
	tones := make([]int, 0, len(phonemes))
	for _, p := range phonemes {
		if p.Symbol == "" {
			continue
		}
		phones = append(phones, p.Symbol)
		tones = append(tones, toneOf(p))
	}

	if len(phones) == 0 {
		b.logger.Debug("no phonemes for word", "word", word)
		return []string{UnknownPhone}, []int{0}, nil
	}

	return phones, tones, nil
}

func toneOf(p phonemizer.Phoneme) int {
	if p.Stressed {
		return 1
	}

	return 0
}

func pad[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+2)
	out = append(out, v)
	out = append(out, s...)

	return append(out, v)
}
