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

func gradCmd() *cli.Command {
	var (
		out        string
		outputGrad string
		noInput    bool
		noPadding  bool
	)

	flags := append(windowFlags(), backendFlags()...)
	flags = append(flags,
		dtypeFlag(),
		&cli.StringFlag{
			Name:        "output-grad",
			Aliases:     []string{"g"},
			Usage:       "batch file holding the gradient of the projection (default: all ones)",
			Destination: &outputGrad,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output path (default: <batch>.grad.<ext>)",
			Destination: &out,
		},
		&cli.BoolFlag{
			Name:        "no-input",
			Usage:       "skip the input gradient",
			Destination: &noInput,
		},
		&cli.BoolFlag{
			Name:        "no-padding",
			Usage:       "skip the padding gradient",
			Destination: &noPadding,
		},
	)

	return &cli.Command{
		Name:      "grad",
		Usage:     "Compute input and padding gradients of a projection",
		ArgsUsage: "<batch>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyBackendConfig(cmd, loadedConfig)
			applyDTypeConfig(cmd, loadedConfig)

			if cmd.Args().Len() != 1 {
				return cli.Exit("error: exactly one batch file is required", 1)
			}
			in := cmd.Args().First()
			if out == "" {
				out = outputPath(in, "", "grad")
			}
			dt, err := seqfile.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			b, err := readBatch(in)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", in, err), 1)
			}
			attrs := batchAttrs(cmd, b)
			op, err := seqop.New(attrs, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			var colGrad tensor.Mat
			if outputGrad != "" {
				gb, err := readBatch(outputGrad)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read %s: %v", outputGrad, err), 1)
				}
				colGrad = gb.Features
			} else {
				colGrad = tensor.NewMat(b.Features.R, op.Window().Cols(b.Features.C))
				tensor.Fill(colGrad.Data, 1)
			}

			cctx, release, err := newCompute()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer release()

			g, err := op.Backward(cctx, b.Features, b.Layout, colGrad, !noInput, !noPadding)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			input := g.Input
			if noInput {
				// Keep the layout valid for readers; the gradient is zero.
				input = tensor.NewMat(b.Features.R, b.Features.C)
			}
			res := seqfile.Batch{Features: input, Layout: b.Layout, Padding: g.Padding, Attrs: &attrs}
			if err := writeBatch(out, res, dt); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
			}
			log.Info("wrote gradients",
				"out", out,
				"input_grad", !noInput,
				"padding_grad", g.Padding.R > 0,
			)
			return nil
		},
	}
}
