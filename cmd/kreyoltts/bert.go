package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/safetensors"
	"github.com/example/go-kreyol-tts/internal/text"
	"github.com/spf13/cobra"
)

type featureRunner interface {
	g2pRunner
	BertFeature(ctx context.Context, text string, word2ph []int) (*bert.Matrix, error)
}

type bertSummary struct {
	Text   string `json:"text"`
	Shape  []int  `json:"shape"`
	Chunks int    `json:"chunks"`
	Layer  int    `json:"layer"`
	Out    string `json:"out,omitempty"`
}

func newBertCmd() *cobra.Command {
	var input string
	var out string
	var maxChunkChars int

	cmd := &cobra.Command{
		Use:   "bert",
		Short: "Extract phoneme-aligned BERT features",
		Long: "Extract phoneme-aligned BERT features. With --out the [width, phones] matrix\n" +
			"is written to a safetensors file together with the alignment.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			in, err := readInputText(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			chunks, err := buildFeatureChunks(in, maxChunkChars)
			if err != nil {
				return err
			}

			fe, err := newFrontend(cfg)
			if err != nil {
				return err
			}
			defer fe.Close()

			if err := fe.LoadFeatures(cfg); err != nil {
				return err
			}

			feats, err := extractFeatures(cmd.Context(), fe, chunks)
			if err != nil {
				return err
			}
			feats.Layer = cfg.BERT.Layer

			if out != "" {
				if err := safetensors.WriteFeatures(out, feats); err != nil {
					return fmt.Errorf("write features: %w", err)
				}
				slog.Info("wrote bert features", "path", out, "width", feats.Width, "phones", len(feats.Phones))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bertSummary{
				Text:   feats.Text,
				Shape:  []int{feats.Width, len(feats.Phones)},
				Chunks: len(chunks),
				Layer:  feats.Layer,
				Out:    out,
			})
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to embed (reads stdin when empty)")
	cmd.Flags().StringVar(&out, "out", "", "Write features to this .safetensors file")
	cmd.Flags().IntVar(&maxChunkChars, "max-chunk-chars", 0, "Split long input at sentence boundaries into chunks of at most this many runes (0 disables)")

	return cmd
}

func buildFeatureChunks(input string, maxChunkChars int) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty input text")
	}

	var out []string
	for _, c := range text.ChunkBySentence(input, maxChunkChars) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no non-empty chunks produced from input")
	}
	return out, nil
}

// extractFeatures embeds each chunk separately and joins the results along
// the phone axis. Chunks that normalize to nothing are skipped.
func extractFeatures(ctx context.Context, r featureRunner, chunks []string) (safetensors.Features, error) {
	var (
		feats    safetensors.Features
		texts    []string
		matrices []*bert.Matrix
	)

	for i, chunk := range chunks {
		norm, err := text.Prepare(chunk)
		if errors.Is(err, text.ErrEmptyText) {
			continue
		} else if err != nil {
			return feats, err
		}

		res, err := r.G2P(norm, g2p.G2POptions{PadStartEnd: true})
		if err != nil {
			return feats, fmt.Errorf("chunk %d g2p: %w", i+1, err)
		}

		m, err := r.BertFeature(ctx, norm, res.Word2Ph)
		if err != nil {
			return feats, fmt.Errorf("chunk %d features: %w", i+1, err)
		}
		if len(matrices) > 0 && m.Rows != matrices[0].Rows {
			return feats, fmt.Errorf("chunk %d: feature width %d, want %d", i+1, m.Rows, matrices[0].Rows)
		}

		texts = append(texts, norm)
		matrices = append(matrices, m)
		feats.Phones = append(feats.Phones, res.Phones...)
		feats.Word2Ph = append(feats.Word2Ph, res.Word2Ph...)
	}

	if len(matrices) == 0 {
		return feats, text.ErrEmptyText
	}

	feats.Text = strings.Join(texts, " ")
	feats.Width = matrices[0].Rows
	feats.Data = concatColumns(matrices)

	return feats, nil
}

// concatColumns joins row-major matrices of equal height side by side.
func concatColumns(ms []*bert.Matrix) []float32 {
	rows, total := ms[0].Rows, 0
	for _, m := range ms {
		total += m.Cols
	}

	out := make([]float32, rows*total)
	off := 0
	for _, m := range ms {
		for r := range rows {
			copy(out[r*total+off:r*total+off+m.Cols], m.Data[r*m.Cols:(r+1)*m.Cols])
		}
		off += m.Cols
	}

	return out
}
