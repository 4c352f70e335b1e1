package main

import "github.com/urfave/cli/v3"

var (
	contextStart     int64
	contextLength    int64
	paddingTrainable bool
	backend          string
	workers          int64
	logLevel         string
	logFormat        string
	debug            bool
	configFile       string
	dtype            string
)

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "context-start",
			Aliases:     []string{"start", "s"},
			Usage:       "offset of the first window row relative to the current row",
			Value:       -1,
			Destination: &contextStart,
		},
		&cli.Int64Flag{
			Name:        "context-length",
			Aliases:     []string{"length", "L"},
			Usage:       "number of rows in each window",
			Value:       3,
			Destination: &contextLength,
		},
		&cli.BoolFlag{
			Name:        "trainable",
			Usage:       "fill out-of-range window slots from the padding matrix",
			Destination: &paddingTrainable,
		},
	}
}

func backendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "compute backend (auto, serial, parallel)",
			Value:       "auto",
			Destination: &backend,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "parallel workers (0 uses GOMAXPROCS)",
			Destination: &workers,
		},
	}
}

func dtypeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "dtype",
		Usage:       "payload type for written .seq files (f32, f16, bf16)",
		Value:       "f32",
		Destination: &dtype,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, plain, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (defaults to the user config directory)",
			Destination: &configFile,
		},
	}
}
