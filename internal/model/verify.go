package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/tokenizer"
)

// VerifySentence is fed through the model during verification.
const VerifySentence = "bonjou, kijan ou ye?"

type VerifyOptions struct {
	ModelPath     string
	TokenizerPath string
	Lowercase     bool
	// Layer is resolved against the model's layer count; see bert.WithLayer.
	Layer  int
	ONNX   bert.ONNXConfig
	Stdout io.Writer
	Stderr io.Writer
}

type hiddenStateModel interface {
	bert.Model
	Close()
}

var openModel = func(path string, cfg bert.ONNXConfig) (hiddenStateModel, error) {
	m, err := bert.OpenONNXModel(path, cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// VerifyBERT loads the embedding model, runs one sentence through it and
// checks that the requested layer yields one vector per phone.
func VerifyBERT(ctx context.Context, opts VerifyOptions) error {
	if opts.ModelPath == "" {
		return errors.New("model path is required")
	}
	if opts.TokenizerPath == "" {
		return errors.New("tokenizer path is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	tok, err := tokenizer.Open(opts.TokenizerPath, tokenizer.Options{Lowercase: opts.Lowercase})
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}

	m, err := openModel(opts.ModelPath, opts.ONNX)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer m.Close()

	ids, err := tok.EncodeIDs(VerifySentence)
	if err != nil {
		return fmt.Errorf("encode %q: %w", VerifySentence, err)
	}

	// One phone per token keeps the check independent of the phonemizer.
	word2ph := make([]int, len(ids))
	for i := range word2ph {
		word2ph[i] = 1
	}

	rec := &recordingModel{Model: m}
	e, err := bert.NewExtractor(staticEncoder(ids), rec, bert.WithLayer(opts.Layer))
	if err != nil {
		return err
	}

	feat, err := e.Extract(ctx, VerifySentence, word2ph)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", opts.ModelPath, err)
		return fmt.Errorf("verify %s: %w", opts.ModelPath, err)
	}

	hs := rec.last
	_, _ = fmt.Fprintf(opts.Stdout, "PASS %s: %d layers, %d tokens, width %d, features %v\n",
		opts.ModelPath, hs.Layers, hs.Tokens, hs.Width, feat.Shape())

	return nil
}

type recordingModel struct {
	bert.Model
	last bert.HiddenStates
}

func (r *recordingModel) HiddenStates(ctx context.Context, ids []int64) (bert.HiddenStates, error) {
	hs, err := r.Model.HiddenStates(ctx, ids)
	r.last = hs
	return hs, err
}

type staticEncoder []int64

func (s staticEncoder) EncodeIDs(string) ([]int64, error) { return s, nil }
