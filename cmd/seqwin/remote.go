package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seqwin/internal/api"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

func remoteCmd() *cli.Command {
	var (
		server    string
		timeout   time.Duration
		out       string
		printRows bool
	)

	flags := append(windowFlags(),
		dtypeFlag(),
		&cli.StringFlag{
			Name:        "server",
			Usage:       "base URL of a seqwin server",
			Value:       "http://127.0.0.1:8080",
			Destination: &server,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "request timeout",
			Value:       30 * time.Second,
			Destination: &timeout,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "write the projection to this path",
			Destination: &out,
		},
		&cli.BoolFlag{
			Name:        "print",
			Usage:       "print the projected rows as a table",
			Destination: &printRows,
		},
	)

	return &cli.Command{
		Name:      "remote",
		Usage:     "Project a batch file on a running seqwin server",
		ArgsUsage: "<batch>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyDTypeConfig(cmd, loadedConfig)
			if loadedConfig.ServerAddress != "" && !cmd.IsSet("server") {
				server = "http://" + loadedConfig.ServerAddress
			}

			if cmd.Args().Len() != 1 {
				return cli.Exit("error: exactly one batch file is required", 1)
			}
			in := cmd.Args().First()
			b, err := readBatch(in)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", in, err), 1)
			}
			dt, err := seqfile.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			client := api.NewClient(server, timeout)
			res, err := remoteProject(ctx, client, batchAttrs(cmd, b), b)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("remote projection", "server", server, "rows", res.Features.R, "width", res.Features.C)

			if out != "" {
				if err := writeBatch(out, res, dt); err != nil {
					return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
				}
			}
			if printRows || out == "" {
				renderRows(outWriter(cmd), in, res.Layout, res.Features)
			}
			return nil
		},
	}
}

// remoteProject sends b to the server and returns the projection as a batch
// sharing b's layout.
func remoteProject(ctx context.Context, client *api.Client, attrs seqop.Attrs, b seqfile.Batch) (seqfile.Batch, error) {
	jb := seqfile.ToJSON(b)
	resp, err := client.Project(ctx, api.ProjectRequest{
		Boundaries:       jb.Boundaries,
		Width:            jb.Width,
		Features:         jb.Features,
		ContextStart:     attrs.ContextStart,
		ContextLength:    attrs.ContextLength,
		PaddingTrainable: attrs.PaddingTrainable,
		Padding:          jb.Padding,
	})
	if err != nil {
		return seqfile.Batch{}, err
	}
	col, err := seqfile.MatFromRows(resp.Output, resp.Width)
	if err != nil {
		return seqfile.Batch{}, fmt.Errorf("decode response: %w", err)
	}
	return seqfile.Batch{Features: col, Layout: b.Layout, Attrs: &attrs}, nil
}
