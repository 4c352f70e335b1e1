package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

func genCmd() *cli.Command {
	var (
		out       string
		lengths   string
		sequences int64
		maxLen    int64
		width     int64
		seed      int64
	)

	flags := append(windowFlags(),
		dtypeFlag(),
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output path (.seq or .json)",
			Required:    true,
			Destination: &out,
		},
		&cli.StringFlag{
			Name:        "lengths",
			Usage:       "comma separated sequence lengths (overrides --sequences)",
			Destination: &lengths,
		},
		&cli.Int64Flag{
			Name:        "sequences",
			Aliases:     []string{"n"},
			Usage:       "number of sequences with random lengths",
			Value:       4,
			Destination: &sequences,
		},
		&cli.Int64Flag{
			Name:        "max-len",
			Usage:       "longest random sequence",
			Value:       8,
			Destination: &maxLen,
		},
		&cli.Int64Flag{
			Name:        "width",
			Aliases:     []string{"w"},
			Usage:       "feature width",
			Value:       4,
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
		Name:  "gen",
		Usage: "Generate a random packed batch file",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyDTypeConfig(cmd, loadedConfig)

			if width < 1 {
				return cli.Exit("error: --width must be at least 1", 1)
			}
			var lens []int
			if lengths != "" {
				parsed, err := parseLengths(lengths)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				lens = parsed
			} else {
				if sequences < 1 || maxLen < 0 {
					return cli.Exit("error: --sequences must be positive and --max-len non-negative", 1)
				}
				lens = randomLengths(int(sequences), int(maxLen), seed)
			}
			dt, err := seqfile.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			attrs := seqop.NewAttrs(int(contextStart), int(contextLength), paddingTrainable)
			_, padShape, err := seqop.InferShape(0, int(width), attrs)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			features, layout, err := randomBatch(lens, int(width), seed)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			b := seqfile.Batch{Features: features, Layout: layout, Attrs: &attrs}
			if attrs.PaddingTrainable {
				b.Padding = tensor.NewMat(padShape.Rows, padShape.Cols)
				tensor.FillRand(&b.Padding, seed+1)
			}
			if err := writeBatch(out, b, dt); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
			}
			log.Info("generated batch",
				"out", out,
				"sequences", layout.NumSeq(),
				"rows", features.R,
				"width", features.C,
				"padding_rows", b.Padding.R,
			)
			return nil
		},
	}
}
