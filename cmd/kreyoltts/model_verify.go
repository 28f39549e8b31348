package main

import (
	"fmt"

	"github.com/example/go-kreyol-tts/internal/bert"
	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/model"
	"github.com/spf13/cobra"
)

func newModelVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run smoke inference through the configured BERT model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts := verifyOptions(cfg)
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			if err := model.VerifyBERT(cmd.Context(), opts); err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}

func verifyOptions(cfg config.Config) model.VerifyOptions {
	return model.VerifyOptions{
		ModelPath:     cfg.Paths.BertModelPath,
		TokenizerPath: cfg.Paths.TokenizerPath,
		Lowercase:     cfg.G2P.Lowercase,
		Layer:         cfg.BERT.Layer,
		ONNX: bert.ONNXConfig{
			Runtime:    cfg.Runtime,
			OutputName: cfg.BERT.OutputName,
			Device:     cfg.BERT.Device,
		},
	}
}
