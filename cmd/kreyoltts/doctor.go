package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/doctor"
	"github.com/example/go-kreyol-tts/internal/model"
	"github.com/example/go-kreyol-tts/internal/onnx"
	"github.com/example/go-kreyol-tts/internal/phonemizer"
	"github.com/example/go-kreyol-tts/internal/tokenizer"
	"github.com/spf13/cobra"
)

// probeWord is phonemized by the doctor to prove the language is available.
const probeWord = "bonjou"

func newDoctorCmd() *cobra.Command {
	var skipRuntime bool
	var verify bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, tokenizer and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

			result := doctor.Run(doctorConfig(cfg, skipRuntime), stdout)

			// Smoke inference as an additional check.
			switch {
			case skipRuntime || !verify:
				_, _ = fmt.Fprintf(stdout, "%s model verify: skipped\n", doctor.PassMark)
			case result.Failed():
				_, _ = fmt.Fprintf(stdout, "%s model verify: skipped (earlier checks failed)\n", doctor.PassMark)
			default:
				opts := verifyOptions(cfg)
				opts.Stdout = stdout
				opts.Stderr = stderr
				if verifyErr := model.VerifyBERT(cmd.Context(), opts); verifyErr != nil {
					result.AddFailure(fmt.Sprintf("model verify: %v", verifyErr))
					_, _ = fmt.Fprintf(stdout, "%s model verify: %v\n", doctor.FailMark, verifyErr)
				} else {
					_, _ = fmt.Fprintf(stdout, "%s model verify: ok\n", doctor.PassMark)
				}
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(stdout, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip ONNX Runtime and model checks (g2p-only setups)")
	cmd.Flags().BoolVar(&verify, "verify", true, "Run one sentence through the model after the file checks")

	return cmd
}

func doctorConfig(cfg config.Config, skipRuntime bool) doctor.Config {
	return doctor.Config{
		DetectRuntime: func() (onnx.RuntimeInfo, error) {
			return onnx.DetectRuntime(cfg.Runtime)
		},
		APIVersion:    cfg.Runtime.APIVersion,
		SkipRuntime:   skipRuntime,
		TokenizerPath: cfg.Paths.TokenizerPath,
		ValidateTokenizer: func(path string) error {
			_, err := tokenizer.Open(path, tokenizer.Options{Lowercase: cfg.G2P.Lowercase})
			return err
		},
		BertModelPath: cfg.Paths.BertModelPath,
		ProbePhonemizer: func() (string, error) {
			return probePhonemizer(cfg.G2P.Language)
		},
	}
}

func probePhonemizer(language string) (string, error) {
	g, err := phonemizer.NewGoruut(language)
	if err != nil {
		return "", err
	}

	ps, err := g.Phonemize(probeWord)
	if err != nil {
		return "", fmt.Errorf("phonemize %q: %w", probeWord, err)
	}
	if len(ps) == 0 {
		return "", fmt.Errorf("%s returned no phonemes for %q", language, probeWord)
	}

	return fmt.Sprintf("%s (%s → %s)", language, probeWord, strings.Join(phonemizer.Symbols(ps), " ")), nil
}
