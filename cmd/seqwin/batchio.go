package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

const producer = "seqwin"

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// readBatch loads a .seq container or, for a .json path, the text form.
func readBatch(path string) (seqfile.Batch, error) {
	if !isJSONPath(path) {
		return seqfile.ReadBatch(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return seqfile.Batch{}, err
	}
	defer f.Close()
	b, err := seqfile.DecodeJSON(f)
	if err != nil {
		return seqfile.Batch{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return b, nil
}

func writeBatch(path string, b seqfile.Batch, dt seqfile.DType) (err error) {
	if b.Producer == "" {
		b.Producer = producer
	}
	if !isJSONPath(path) {
		return seqfile.WriteBatch(path, b, dt)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return seqfile.EncodeJSON(f, b)
}

// batchAttrs returns the window attributes for b.  Flags and config file
// values win, then attributes stored in the batch, then flag defaults.
func batchAttrs(cmd *cli.Command, b seqfile.Batch) seqop.Attrs {
	a := seqop.NewAttrs(int(contextStart), int(contextLength), paddingTrainable)
	if b.Attrs == nil {
		return a
	}
	if !cmd.IsSet("context-start") && loadedConfig.ContextStart == nil {
		a.ContextStart = b.Attrs.ContextStart
	}
	if !cmd.IsSet("context-length") && loadedConfig.ContextLength == nil {
		a.ContextLength = b.Attrs.ContextLength
	}
	if !cmd.IsSet("trainable") && loadedConfig.PaddingTrainable == nil {
		a.PaddingTrainable = b.Attrs.PaddingTrainable
	}
	return a
}

func newCompute() (compute.Context, func(), error) {
	ctx, err := compute.New(backend, int(workers))
	if err != nil {
		return nil, nil, err
	}
	release := func() {}
	if p, ok := ctx.(*compute.Parallel); ok && p != compute.Default() {
		release = p.Close
	}
	return ctx, release, nil
}

// outputPath derives "<base>.<suffix><ext>" next to in, or inside dir when
// set.
func outputPath(in, dir, suffix string) string {
	ext := filepath.Ext(in)
	base := strings.TrimSuffix(filepath.Base(in), ext)
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base+"."+suffix+ext)
}
