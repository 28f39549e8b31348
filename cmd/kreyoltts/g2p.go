package main

import (
	"encoding/json"
	"fmt"

	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/text"
	"github.com/spf13/cobra"
)

type g2pOutput struct {
	Text    string   `json:"text"`
	Phones  []string `json:"phones"`
	Tones   []int    `json:"tones"`
	Word2Ph []int    `json:"word2ph"`
}

type g2pRunner interface {
	G2P(text string, opts g2p.G2POptions) (g2p.Result, error)
}

func newG2PCmd() *cobra.Command {
	var input string
	var raw bool

	cmd := &cobra.Command{
		Use:   "g2p",
		Short: "Align text to phonemes and print JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			in, err := readInputText(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			fe, err := newFrontend(cfg)
			if err != nil {
				return err
			}
			defer fe.Close()

			out, err := runG2P(fe, in, g2p.G2POptions{PadStartEnd: cfg.G2P.PadStartEnd}, !raw)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to convert (reads stdin when empty)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Skip normalization; input must already be normalized")

	return cmd
}

func runG2P(r g2pRunner, input string, opts g2p.G2POptions, normalize bool) (g2pOutput, error) {
	if normalize {
		norm, err := text.Prepare(input)
		if err != nil {
			return g2pOutput{}, err
		}
		input = norm
	}

	res, err := r.G2P(input, opts)
	if err != nil {
		return g2pOutput{}, fmt.Errorf("g2p: %w", err)
	}

	return g2pOutput{Text: input, Phones: res.Phones, Tones: res.Tones, Word2Ph: res.Word2Ph}, nil
}
