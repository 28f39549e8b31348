// Package frontend wires normalization, g2p alignment and phoneme-level BERT
// features into the surface the CLI and HTTP server use.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/phonemizer"
	"github.com/example/go-kreyol-tts/internal/text"
	"github.com/example/go-kreyol-tts/internal/tokenizer"
)

// ErrFeaturesNotLoaded is returned by BertFeature before LoadFeatures succeeded.
var ErrFeaturesNotLoaded = errors.New("bert features not loaded; call LoadFeatures first")

// FeatureModel is an embedding model the Frontend owns and closes.
type FeatureModel interface {
	bert.Model
	Close()
}

// ModelLoader opens the embedding model described by cfg.
type ModelLoader func(cfg config.Config) (FeatureModel, error)

// Option configures a Frontend.
type Option func(*Frontend)

// WithLogger sets the logger passed down to the builder and extractor.
func WithLogger(l *slog.Logger) Option {
	return func(f *Frontend) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithModelLoader replaces the ONNX model loader used by LoadFeatures.
func WithModelLoader(load ModelLoader) Option {
	return func(f *Frontend) {
		if load != nil {
			f.loadModel = load
		}
	}
}

// Frontend owns the tokenizer, phonemizer and, once loaded, the embedding
// model. It is safe for concurrent use after construction.
type Frontend struct {
	tok       tokenizer.Tokenizer
	builder   *g2p.Builder
	cache     *phonemizer.Cached
	logger    *slog.Logger
	loadModel ModelLoader

	featOnce  sync.Once
	featErr   error
	model     FeatureModel
	extractor atomic.Pointer[bert.Extractor]

	closeOnce sync.Once
}

// New opens the tokenizer and goruut phonemizer named by cfg.
func New(cfg config.Config, opts ...Option) (*Frontend, error) {
	tok, err := tokenizer.Open(cfg.Paths.TokenizerPath, tokenizer.Options{Lowercase: cfg.G2P.Lowercase})
	if err != nil {
		return nil, fmt.Errorf("open tokenizer: %w", err)
	}

	ph, err := phonemizer.NewGoruut(cfg.G2P.Language)
	if err != nil {
		return nil, fmt.Errorf("open phonemizer: %w", err)
	}

	var cache *phonemizer.Cached
	var backend phonemizer.Phonemizer = ph
	if cfg.G2P.CacheSize > 0 {
		cache, err = phonemizer.NewCached(ph, cfg.G2P.CacheSize)
		if err != nil {
			return nil, err
		}
		backend = cache
	}

	f, err := NewWithComponents(tok, backend, opts...)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, err
	}
	f.cache = cache

	return f, nil
}

// NewWithComponents builds a Frontend from an already opened tokenizer and phonemizer.
func NewWithComponents(tok tokenizer.Tokenizer, ph phonemizer.Phonemizer, opts ...Option) (*Frontend, error) {
	f := &Frontend{
		tok:       tok,
		logger:    slog.Default(),
		loadModel: openONNXModel,
	}
	for _, o := range opts {
		o(f)
	}

	builder, err := g2p.NewBuilder(tok, ph, g2p.WithLogger(f.logger))
	if err != nil {
		return nil, err
	}
	f.builder = builder

	return f, nil
}

func openONNXModel(cfg config.Config) (FeatureModel, error) {
	return bert.OpenONNXModel(cfg.Paths.BertModelPath, bert.ONNXConfig{
		Runtime:    cfg.Runtime,
		OutputName: cfg.BERT.OutputName,
		Device:     cfg.BERT.Device,
	})
}

// TextNormalize normalizes raw Haitian Creole text.
func TextNormalize(s string) string {
	return text.Normalize(s)
}

// G2P aligns normalized text to phonemes.
func (f *Frontend) G2P(s string, opts g2p.G2POptions) (g2p.Result, error) {
	return f.builder.G2P(s, opts)
}

// LoadFeatures opens the embedding model once. Concurrent and repeated calls
// share the first outcome, including its error.
func (f *Frontend) LoadFeatures(cfg config.Config) error {
	f.featOnce.Do(func() {
		model, err := f.loadModel(cfg)
		if err != nil {
			f.featErr = fmt.Errorf("load bert model: %w", err)
			return
		}

		extractor, err := bert.NewExtractor(f.tok, model,
			bert.WithLayer(cfg.BERT.Layer),
			bert.WithLogger(f.logger),
		)
		if err != nil {
			model.Close()
			f.featErr = err
			return
		}

		f.model = model
		f.extractor.Store(extractor)
		f.logger.Info("bert model loaded", "path", cfg.Paths.BertModelPath, "layer", cfg.BERT.Layer)
	})

	return f.featErr
}

// FeaturesLoaded reports whether LoadFeatures has succeeded.
func (f *Frontend) FeaturesLoaded() bool {
	return f.extractor.Load() != nil
}

// BertFeature returns the width x sum(word2ph) feature matrix for text.
func (f *Frontend) BertFeature(ctx context.Context, s string, word2ph []int) (*bert.Matrix, error) {
	e := f.extractor.Load()
	if e == nil {
		return nil, ErrFeaturesNotLoaded
	}

	return e.Extract(ctx, s, word2ph)
}

// Close releases the embedding model and the phoneme cache.
func (f *Frontend) Close() {
	f.closeOnce.Do(func() {
		if f.model != nil {
			f.model.Close()
		}
		if f.cache != nil {
			f.cache.Close()
		}
	})
}
