package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

func projectCmd() *cli.Command {
	var (
		out       string
		outDir    string
		printRows bool
		jobs      int64
	)

	flags := append(windowFlags(), backendFlags()...)
	flags = append(flags,
		dtypeFlag(),
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output path (single input only)",
			Destination: &out,
		},
		&cli.StringFlag{
			Name:        "out-dir",
			Usage:       "directory for outputs (default: next to each input)",
			Destination: &outDir,
		},
		&cli.BoolFlag{
			Name:        "print",
			Usage:       "print the projected rows as a table",
			Destination: &printRows,
		},
		&cli.Int64Flag{
			Name:        "jobs",
			Aliases:     []string{"j"},
			Usage:       "files processed concurrently",
			Value:       2,
			Destination: &jobs,
		},
	)

	return &cli.Command{
		Name:      "project",
		Usage:     "Project one or more batch files (.seq or .json)",
		ArgsUsage: "<batch>...",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyBackendConfig(cmd, loadedConfig)
			applyDTypeConfig(cmd, loadedConfig)

			inputs := cmd.Args().Slice()
			if len(inputs) == 0 {
				return cli.Exit("error: at least one batch file is required", 1)
			}
			if out != "" && len(inputs) > 1 {
				return cli.Exit("error: --out only applies to a single input; use --out-dir", 1)
			}
			dt, err := seqfile.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cctx, release, err := newCompute()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer release()

			results := make([]seqfile.Batch, len(inputs))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(int(max(1, jobs)))
			for i, in := range inputs {
				dst := out
				if dst == "" {
					dst = outputPath(in, outDir, "proj")
				}
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					b, err := projectFile(cmd, cctx, log.With("file", in), in, dst, dt)
					if err != nil {
						return fmt.Errorf("%s: %w", in, err)
					}
					results[i] = b
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if printRows {
				for i, b := range results {
					renderRows(outWriter(cmd), inputs[i], b.Layout, b.Features)
				}
			}
			return nil
		},
	}
}

func projectFile(cmd *cli.Command, cctx compute.Context, log logger.Logger, in, dst string, dt seqfile.DType) (seqfile.Batch, error) {
	b, err := readBatch(in)
	if err != nil {
		return seqfile.Batch{}, err
	}
	attrs := batchAttrs(cmd, b)
	op, err := seqop.New(attrs, log)
	if err != nil {
		return seqfile.Batch{}, err
	}
	col, err := op.Forward(cctx, b.Features, b.Layout, b.Padding)
	if err != nil {
		return seqfile.Batch{}, err
	}
	res := seqfile.Batch{Features: col, Layout: b.Layout, Attrs: &attrs}
	if err := writeBatch(dst, res, dt); err != nil {
		return seqfile.Batch{}, err
	}
	log.Info("projected",
		"out", dst,
		"sequences", b.Layout.NumSeq(),
		"rows", col.R,
		"width", col.C,
	)
	return res, nil
}
