package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/optim"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
)

type trainConfig struct {
	Attrs    seqop.Attrs
	Lengths  []int
	Width    int
	Steps    int
	LR       float32
	Opt      optim.DecayedAdagrad
	Seed     int64
	LogEvery int
	Compute  compute.Context
	Log      logger.Logger
}

type trainResult struct {
	InitialLoss float64
	FinalLoss   float64
	Steps       int
	History     []lossPoint
}

type lossPoint struct {
	Step int
	Loss float64
}

func trainCmd() *cli.Command {
	var (
		lengths  string
		width    int64
		steps    int64
		lr       float64
		decay    float64
		epsilon  float64
		seed     int64
		logEvery int64
	)

	opt := optim.NewDecayedAdagrad()
	flags := append(windowFlags(), backendFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "lengths",
			Usage:       "comma separated sequence lengths of the synthetic batch",
			Value:       "5,1,3,8,2",
			Destination: &lengths,
		},
		&cli.Int64Flag{
			Name:        "width",
			Aliases:     []string{"w"},
			Usage:       "feature width",
			Value:       4,
			Destination: &width,
		},
		&cli.Int64Flag{
			Name:        "steps",
			Aliases:     []string{"n"},
			Usage:       "optimizer steps",
			Value:       200,
			Destination: &steps,
		},
		&cli.Float64Flag{
			Name:        "lr",
			Usage:       "learning rate",
			Value:       0.02,
			Destination: &lr,
		},
		&cli.Float64Flag{
			Name:        "decay",
			Usage:       "moment decay",
			Value:       float64(opt.Decay),
			Destination: &decay,
		},
		&cli.Float64Flag{
			Name:        "epsilon",
			Usage:       "denominator epsilon",
			Value:       float64(opt.Epsilon),
			Destination: &epsilon,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed",
			Value:       1,
			Destination: &seed,
		},
		&cli.Int64Flag{
			Name:        "log-every",
			Usage:       "log the loss every N steps (0 disables)",
			Value:       50,
			Destination: &logEvery,
		},
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Fit trainable padding to a synthetic target with decayed Adagrad",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyWindowConfig(cmd, loadedConfig)
			applyBackendConfig(cmd, loadedConfig)

			lens, err := parseLengths(lengths)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if width < 1 || steps < 1 {
				return cli.Exit("error: --width and --steps must be positive", 1)
			}
			cctx, release, err := newCompute()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer release()

			res, err := train(trainConfig{
				Attrs:    seqop.NewAttrs(int(contextStart), int(contextLength), true),
				Lengths:  lens,
				Width:    int(width),
				Steps:    int(steps),
				LR:       float32(lr),
				Opt:      optim.DecayedAdagrad{Decay: float32(decay), Epsilon: float32(epsilon)},
				Seed:     seed,
				LogEvery: int(logEvery),
				Compute:  cctx,
				Log:      log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			t := table.NewWriter()
			t.SetOutputMirror(outWriter(cmd))
			t.SetTitle("Padding fit")
			t.AppendHeader(table.Row{"step", "loss"})
			for _, p := range res.History {
				t.AppendRow(table.Row{p.Step, strconv.FormatFloat(p.Loss, 'g', 6, 64)})
			}
			t.AppendFooter(table.Row{"reduction", fmt.Sprintf("%.2f%%", 100*(1-res.FinalLoss/res.InitialLoss))})
			t.Render()
			return nil
		},
	}
}

// train fits a layer's padding so that its projection of a random batch
// matches the projection made with a hidden target padding.  The loss is
// half the squared error over every output value.
func train(cfg trainConfig) (trainResult, error) {
	if !cfg.Attrs.PaddingTrainable {
		return trainResult{}, fmt.Errorf("training needs trainable padding")
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	features, layout, err := randomBatch(cfg.Lengths, cfg.Width, cfg.Seed)
	if err != nil {
		return trainResult{}, err
	}

	target, err := seqop.NewLayer(cfg.Attrs, cfg.Width, cfg.Seed+1, cfg.Log)
	if err != nil {
		return trainResult{}, err
	}
	tp := target.Padding()
	tensor.FillRand(&tp, cfg.Seed+2)
	want, err := target.Forward(cfg.Compute, features, layout)
	if err != nil {
		return trainResult{}, err
	}

	layer, err := seqop.NewLayer(cfg.Attrs, cfg.Width, cfg.Seed+3, cfg.Log)
	if err != nil {
		return trainResult{}, err
	}

	var res trainResult
	for step := range cfg.Steps + 1 {
		loss, grad, err := squaredError(cfg.Compute, layer, features, layout, want)
		if err != nil {
			return trainResult{}, err
		}
		if step == 0 {
			res.InitialLoss = loss
		}
		res.FinalLoss = loss
		if step == cfg.Steps || (cfg.LogEvery > 0 && step%cfg.LogEvery == 0) {
			res.History = append(res.History, lossPoint{Step: step, Loss: loss})
			cfg.Log.Info("train", "step", step, "loss", loss)
		}
		if step == cfg.Steps {
			break
		}

		layer.ZeroGrad()
		if _, err := layer.Backward(cfg.Compute, features, layout, grad); err != nil {
			return trainResult{}, err
		}
		if err := layer.Step(cfg.Opt, cfg.LR); err != nil {
			return trainResult{}, err
		}
	}
	res.Steps = cfg.Steps
	return res, nil
}

func squaredError(cctx compute.Context, layer *seqop.Layer, features tensor.Mat, layout lod.Layout, want tensor.Mat) (float64, tensor.Mat, error) {
	got, err := layer.Forward(cctx, features, layout)
	if err != nil {
		return 0, tensor.Mat{}, err
	}
	tensor.Axpy(got.Data, -1, want.Data)
	loss := 0.5 * tensor.MatDot(&got, &got)
	return loss, got, nil
}
