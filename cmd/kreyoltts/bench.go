package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/go-kreyol-tts/internal/bench"
	"github.com/example/go-kreyol-tts/internal/g2p"
	"github.com/example/go-kreyol-tts/internal/text"
	"github.com/spf13/cobra"
)

const (
	stageG2P  = "g2p"
	stageBert = "bert"
)

func newBenchCmd() *cobra.Command {
	var (
		input   string
		stage   string
		runs    int
		format  string
		maxMean time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark g2p or feature extraction latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}
			if stage != stageG2P && stage != stageBert {
				return fmt.Errorf("--stage must be %q or %q", stageG2P, stageBert)
			}

			in, err := readInputText(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			norm, err := text.Prepare(in)
			if err != nil {
				return err
			}

			fe, err := newFrontend(cfg)
			if err != nil {
				return err
			}
			defer fe.Close()

			if stage == stageBert {
				if err := fe.LoadFeatures(cfg); err != nil {
					return err
				}
			}

			results, err := runBench(cmd.Context(), fe, benchOptions{
				Text:  norm,
				Stage: stage,
				Runs:  runs,
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))

			switch format {
			case "json":
				if err := bench.FormatJSON(results, stats, cmd.OutOrStdout()); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, stats, cmd.OutOrStdout())
			}

			return bench.CheckMeanThreshold(stats.Mean, maxMean)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to process on each run (reads stdin when empty)")
	cmd.Flags().StringVar(&stage, "stage", stageG2P, "Stage to time: g2p|bert")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().DurationVar(&maxMean, "max-mean", 0, "Exit non-zero if mean latency exceeds this value (0 = disabled)")

	return cmd
}

type benchOptions struct {
	Text  string
	Stage string
	Runs  int
}

// runBench times opts.Runs passes over already-normalized text. The bert
// stage includes the padded g2p pass it depends on.
func runBench(ctx context.Context, r featureRunner, opts benchOptions) ([]bench.RunResult, error) {
	results := make([]bench.RunResult, 0, opts.Runs)

	for i := range opts.Runs {
		start := time.Now()

		res, err := r.G2P(opts.Text, g2p.G2POptions{PadStartEnd: true})
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}
		if opts.Stage == stageBert {
			if _, err := r.BertFeature(ctx, opts.Text, res.Word2Ph); err != nil {
				return nil, fmt.Errorf("run %d failed: %w", i+1, err)
			}
		}

		dur := time.Since(start)
		results = append(results, bench.RunResult{
			Index:     i,
			Cold:      i == 0,
			Duration:  dur,
			Phones:    len(res.Phones),
			PhoneRate: bench.CalcPhoneRate(dur, len(res.Phones)),
		})
	}

	return results, nil
}
