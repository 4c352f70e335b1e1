package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
)

type benchResult struct {
	Backend string
	Workers int
	Phase   string
	Mean    time.Duration
	StdDev  time.Duration
	RowsPS  float64
}

func benchmarkCmd() *cli.Command {
	var (
		warmupRuns int64
		benchRuns  int64
		sequences  int64
		maxLen     int64
		width      int64
		seed       int64
	)

	flags := append(windowFlags(), backendFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       2,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs",
			Value:       10,
			Destination: &benchRuns,
		},
		&cli.Int64Flag{
			Name:        "sequences",
			Aliases:     []string{"n"},
			Usage:       "sequences in the synthetic batch",
			Value:       64,
			Destination: &sequences,
		},
		&cli.Int64Flag{
			Name:        "max-len",
			Usage:       "longest synthetic sequence",
			Value:       128,
			Destination: &maxLen,
		},
		&cli.Int64Flag{
			Name:        "width",
			Aliases:     []string{"w"},
			Usage:       "feature width",
			Value:       128,
			Destination: &width,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed",
			Value:       1,
			Destination: &seed,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Time forward and backward projection on a synthetic batch",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyBackendConfig(cmd, loadedConfig)

			if benchRuns < 1 || sequences < 1 || width < 1 || maxLen < 0 {
				return cli.Exit("error: --runs, --sequences and --width must be positive", 1)
			}
			attrs := seqop.NewAttrs(int(contextStart), int(contextLength), paddingTrainable)

			var contexts []compute.Context
			if cmd.IsSet("backend") || loadedConfig.Backend != "" {
				cctx, release, err := newCompute()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer release()
				contexts = append(contexts, cctx)
			} else {
				var par compute.Context = compute.Default()
				if workers > 0 {
					p := compute.NewParallel(int(workers))
					defer p.Close()
					par = p
				}
				contexts = append(contexts, compute.Serial(), par)
			}

			log.Info("benchmarking",
				"sequences", sequences,
				"max_len", maxLen,
				"width", width,
				"context_start", attrs.ContextStart,
				"context_length", attrs.ContextLength,
				"trainable", attrs.PaddingTrainable,
			)
			var results []benchResult
			for _, cctx := range contexts {
				r, err := benchProjection(cctx, attrs, randomLengths(int(sequences), int(maxLen), seed), int(width), seed, int(warmupRuns), int(benchRuns))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				results = append(results, r...)
			}

			t := table.NewWriter()
			t.SetOutputMirror(outWriter(cmd))
			t.SetTitle("Context projection")
			t.AppendHeader(table.Row{"backend", "workers", "phase", "mean", "stddev", "rows/s"})
			for _, r := range results {
				t.AppendRow(table.Row{r.Backend, r.Workers, r.Phase, r.Mean, r.StdDev, fmt.Sprintf("%.0f", r.RowsPS)})
			}
			t.Render()
			return nil
		},
	}
}

// benchProjection times Forward and Backward on one random batch.
func benchProjection(cctx compute.Context, attrs seqop.Attrs, lengths []int, width int, seed int64, warmup, runs int) ([]benchResult, error) {
	features, layout, err := randomBatch(lengths, width, seed)
	if err != nil {
		return nil, err
	}
	op, err := seqop.New(attrs, nil)
	if err != nil {
		return nil, err
	}
	_, padShape, err := seqop.InferShape(features.R, width, attrs)
	if err != nil {
		return nil, err
	}
	padding := tensor.NewMat(padShape.Rows, padShape.Cols)
	tensor.FillRand(&padding, seed+1)
	colGrad := tensor.NewMat(features.R, op.Window().Cols(width))
	tensor.FillRand(&colGrad, seed+2)

	phases := []struct {
		name string
		run  func() error
	}{
		{"forward", func() error {
			_, err := op.Forward(cctx, features, layout, padding)
			return err
		}},
		{"backward", func() error {
			_, err := op.Backward(cctx, features, layout, colGrad, true, true)
			return err
		}},
	}

	out := make([]benchResult, 0, len(phases))
	for _, p := range phases {
		for range warmup {
			if err := p.run(); err != nil {
				return nil, err
			}
		}
		samples := make([]float64, runs)
		for i := range samples {
			start := time.Now()
			if err := p.run(); err != nil {
				return nil, err
			}
			samples[i] = time.Since(start).Seconds()
		}
		mean, std := stat.MeanStdDev(samples, nil)
		if runs < 2 {
			std = 0
		}
		r := benchResult{
			Backend: cctx.Name(),
			Workers: cctx.Workers(),
			Phase:   p.name,
			Mean:    time.Duration(mean * float64(time.Second)),
			StdDev:  time.Duration(std * float64(time.Second)),
		}
		if mean > 0 {
			r.RowsPS = float64(features.R) / mean
		}
		out = append(out, r)
	}
	return out, nil
}
