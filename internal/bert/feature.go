// Package bert derives phoneme-aligned contextual features from a masked
// language model. Each token's hidden vector is repeated once per phoneme the
// g2p alignment assigned to it.
package bert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrTokenCountMismatch means the embedding tokenizer and the g2p
	// alignment disagree on the token count. Callers must not retry.
	ErrTokenCountMismatch = errors.New("token count does not match word2ph length")
	// ErrLayerOutOfRange is returned when the selected layer does not exist.
	ErrLayerOutOfRange = errors.New("hidden-state layer out of range")
	// ErrNegativeCount is returned for a negative word2ph entry.
	ErrNegativeCount = errors.New("word2ph entry is negative")
)

// DefaultLayer selects the third layer from the end.
const DefaultLayer = -3

// Encoder produces the model input ids for a text, including the sentence
// boundary tokens.
type Encoder interface {
	EncodeIDs(text string) ([]int64, error)
}

// Model runs the embedding network.
type Model interface {
	HiddenStates(ctx context.Context, ids []int64) (HiddenStates, error)
}

// HiddenStates holds per-layer token vectors, laid out [Layers][Tokens][Width].
type HiddenStates struct {
	Layers int
	Tokens int
	Width  int
	Data   []float32
}

// Validate checks that Data matches the declared dimensions.
func (h HiddenStates) Validate() error {
	if h.Layers < 1 || h.Tokens < 0 || h.Width < 1 {
		return fmt.Errorf("invalid hidden-state dims [%d %d %d]", h.Layers, h.Tokens, h.Width)
	}
	if want := h.Layers * h.Tokens * h.Width; len(h.Data) != want {
		return fmt.Errorf("hidden states hold %d values, dims [%d %d %d] need %d",
			len(h.Data), h.Layers, h.Tokens, h.Width, want)
	}

	return nil
}

// Vector returns the hidden vector of token tok in layer. It aliases Data.
func (h HiddenStates) Vector(layer, tok int) []float32 {
	off := (layer*h.Tokens + tok) * h.Width
	return h.Data[off : off+h.Width]
}

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// At returns the element at row r, column c.
func (m *Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

// Shape returns [Rows, Cols].
func (m *Matrix) Shape() []int {
	return []int{m.Rows, m.Cols}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLayer selects the hidden-state layer; negative values count from the end.
func WithLayer(layer int) Option {
	return func(e *Extractor) {
		e.layer = layer
	}
}

// WithLogger sets the logger for per-call debug records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor turns text plus its word2ph alignment into phoneme-level features.
type Extractor struct {
	enc    Encoder
	model  Model
	layer  int
	logger *slog.Logger
}

// NewExtractor returns an Extractor. The encoder must segment text exactly
// like the tokenizer used for the g2p alignment.
func NewExtractor(enc Encoder, m Model, opts ...Option) (*Extractor, error) {
	if enc == nil || m == nil {
		return nil, errors.New("bert extractor requires an encoder and a model")
	}

	e := &Extractor{enc: enc, model: m, layer: DefaultLayer, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}

	return e, nil
}

// Layer returns the configured layer index.
func (e *Extractor) Layer() int {
	return e.layer
}

// Extract returns a Width x sum(word2ph) matrix whose column block for token
// i is that token's vector repeated word2ph[i] times.
func (e *Extractor) Extract(ctx context.Context, text string, word2ph []int) (*Matrix, error) {
	total := 0
	for i, n := range word2ph {
		if n < 0 {
			return nil, fmt.Errorf("%w: word2ph[%d] = %d", ErrNegativeCount, i, n)
		}
		total += n
	}

	ids, err := e.enc.EncodeIDs(text)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}

	if len(ids) != len(word2ph) {
		return nil, fmt.Errorf("%w: model tokens %d, word2ph %d", ErrTokenCountMismatch, len(ids), len(word2ph))
	}

	hs, err := e.model.HiddenStates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hidden states: %w", err)
	}
	if err := hs.Validate(); err != nil {
		return nil, err
	}
	if hs.Tokens != len(ids) {
		return nil, fmt.Errorf("%w: model returned %d positions for %d ids", ErrTokenCountMismatch, hs.Tokens, len(ids))
	}

	layer, err := resolveLayer(e.layer, hs.Layers)
	if err != nil {
		return nil, err
	}

	m := &Matrix{Rows: hs.Width, Cols: total, Data: make([]float32, hs.Width*total)}
	col := 0
	for tok, n := range word2ph {
		vec := hs.Vector(layer, tok)
		for range n {
			for r, v := range vec {
				m.Data[r*total+col] = v
			}
			col++
		}
	}

	e.logger.Debug("bert features",
		"tokens", len(ids),
		"phones", total,
		"width", hs.Width,
		"layer", layer,
	)

	return m, nil
}

func resolveLayer(layer, n int) (int, error) {
	idx := layer
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: layer %d of %d", ErrLayerOutOfRange, layer, n)
	}

	return idx, nil
}
