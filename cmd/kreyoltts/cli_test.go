package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/frontend"
	"github.com/example/go-kreyol-tts/internal/phonemizer"
	"github.com/example/go-kreyol-tts/internal/tokenizer"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"bon", "##jou", "mwen", "gen", "ven", "-", "youn", "dola", ",", ".",
}

var testIPA = map[string]string{
	"bonjou": "bɔ̃ˈʒu",
	"mwen":   "mwɛ̃",
	"gen":    "ɡɛ̃",
	"ven":    "vɛ̃",
	"youn":   "ˈjun",
	"dola":   "dola",
}

func writeVocab(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	return path
}

// indexModel returns hidden states whose every value is the token index.
type indexModel struct{}

func (indexModel) HiddenStates(_ context.Context, ids []int64) (bert.HiddenStates, error) {
	const layers, width = 3, 2

	hs := bert.HiddenStates{Layers: layers, Tokens: len(ids), Width: width}
	for range layers {
		for tok := range ids {
			for range width {
				hs.Data = append(hs.Data, float32(tok))
			}
		}
	}

	return hs, nil
}

func (indexModel) Close() {}

// useTestFrontend swaps newFrontend for one built on the config's vocab, a
// fixed lexicon and indexModel.
func useTestFrontend(t *testing.T) {
	t.Helper()

	orig := newFrontend
	t.Cleanup(func() { newFrontend = orig })

	newFrontend = func(cfg config.Config) (*frontend.Frontend, error) {
		tok, err := tokenizer.Open(cfg.Paths.TokenizerPath, tokenizer.Options{})
		if err != nil {
			return nil, err
		}
		lex := phonemizer.Func(func(word string) ([]phonemizer.Phoneme, error) {
			return phonemizer.SplitIPA(testIPA[word]), nil
		})
		return frontend.NewWithComponents(tok, lex,
			frontend.WithModelLoader(func(config.Config) (frontend.FeatureModel, error) {
				return indexModel{}, nil
			}),
		)
	}
}

// execute runs the root command with args and stdin and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}
